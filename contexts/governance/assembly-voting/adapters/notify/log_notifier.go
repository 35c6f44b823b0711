package notify

import (
	"context"
	"log/slog"
	"strings"

	application "bureausocial/contexts/governance/assembly-voting/application"
	"bureausocial/contexts/governance/assembly-voting/ports"
)

// LogNotifier records notifications in the structured log. It stands in
// for an email provider, which this service does not integrate with.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, notification ports.Notification) error {
	application.ResolveLogger(n.Logger).Info("member notification dispatched",
		"event", "assembly_notification_dispatched",
		"module", application.ModuleName,
		"layer", "adapter",
		"kind", notification.Kind,
		"assembly_id", notification.AssemblyID,
		"recipients", strings.Join(notification.MemberIDs, ","),
		"subject", notification.Subject,
	)
	return nil
}

var _ ports.Notifier = LogNotifier{}
