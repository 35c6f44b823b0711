package minutes

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"
	"bureausocial/contexts/governance/assembly-voting/ports"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// Renderer produces assembly minutes from the frozen item snapshots. The
// HTML document is the canonical output; Markdown is derived from it.
type Renderer struct {
	format    Format
	converter *md.Converter
}

func NewRenderer(format Format) *Renderer {
	if format != FormatHTML {
		format = FormatMarkdown
	}
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Renderer{format: format, converter: converter}
}

func (r *Renderer) Render(ctx context.Context, input ports.MinutesInput) (entities.MinutesDocument, error) {
	if err := ctx.Err(); err != nil {
		return entities.MinutesDocument{}, err
	}
	var buf bytes.Buffer
	if err := minutesTemplate.Execute(&buf, newMinutesView(input)); err != nil {
		return entities.MinutesDocument{}, fmt.Errorf("render minutes: %w", err)
	}

	baseName := fmt.Sprintf("minutes-%s-%s", input.Assembly.ScheduledAt.UTC().Format("2006-01-02"), input.Assembly.AssemblyID)
	if r.format == FormatHTML {
		return entities.MinutesDocument{
			AssemblyID:  input.Assembly.AssemblyID,
			FileName:    baseName + ".html",
			ContentType: "text/html; charset=utf-8",
			Content:     buf.Bytes(),
		}, nil
	}

	markdown, err := r.converter.ConvertString(buf.String())
	if err != nil {
		return entities.MinutesDocument{}, fmt.Errorf("convert minutes to markdown: %w", err)
	}
	return entities.MinutesDocument{
		AssemblyID:  input.Assembly.AssemblyID,
		FileName:    baseName + ".md",
		ContentType: "text/markdown; charset=utf-8",
		Content:     []byte(strings.TrimSpace(markdown) + "\n"),
	}, nil
}

type attendeeView struct {
	Name     string
	Category string
	Ballots  int
	Proxies  string
}

type itemView struct {
	Position     int
	Title        string
	Description  string
	MajorityType string
	Status       string
	HasResult    bool
	InFavor      int
	Against      int
	Abstain      int
	Total        int
	Eligible     int
	Quorum       int
	QuorumMet    string
	Outcome      string
}

type minutesView struct {
	Title       string
	Type        string
	ScheduledAt string
	Location    string
	Quorum      int
	Eligibility string
	GeneratedAt string
	Attendees   []attendeeView
	Items       []itemView
}

func newMinutesView(input ports.MinutesInput) minutesView {
	view := minutesView{
		Title:       input.Assembly.Title,
		Type:        string(input.Assembly.Type),
		ScheduledAt: input.Assembly.ScheduledAt.UTC().Format("2006-01-02 15:04 MST"),
		Location:    input.Assembly.Location,
		Quorum:      input.Assembly.QuorumPercentage,
		Eligibility: string(input.Assembly.EligibilityRule),
		GeneratedAt: input.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	for _, attendee := range input.Attendees {
		name := attendee.Name
		if name == "" {
			name = attendee.MemberID
		}
		proxies := "-"
		if len(attendee.ProxiesHeld) > 0 {
			proxies = fmt.Sprintf("%d (%s)", len(attendee.ProxiesHeld), strings.Join(attendee.ProxiesHeld, ", "))
		}
		view.Attendees = append(view.Attendees, attendeeView{
			Name:     name,
			Category: string(attendee.Category),
			Ballots:  attendee.BallotsInItems,
			Proxies:  proxies,
		})
	}
	for _, item := range input.Items {
		entry := itemView{
			Position:     item.Position,
			Title:        item.Title,
			Description:  item.Description,
			MajorityType: string(item.MajorityType),
			Status:       string(item.Status),
		}
		if item.Result != nil {
			entry.HasResult = true
			entry.InFavor = item.Result.Tally.InFavor
			entry.Against = item.Result.Tally.Against
			entry.Abstain = item.Result.Tally.Abstain
			entry.Total = item.Result.Tally.TotalWeightedVotes
			entry.Eligible = item.Result.EligibleMembers
			entry.Quorum = item.Result.QuorumPercentage
			entry.QuorumMet = yesNo(item.Result.QuorumMet)
			entry.Outcome = "Rejected"
			if item.Result.Approved {
				entry.Outcome = "Approved"
			}
		}
		view.Items = append(view.Items, entry)
	}
	return view
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

var minutesTemplate = template.Must(template.New("minutes").Parse(`<html><body>
<h1>Minutes: {{.Title}}</h1>
<p><strong>Type:</strong> {{.Type}}<br>
<strong>Held:</strong> {{.ScheduledAt}}<br>
<strong>Location:</strong> {{.Location}}<br>
<strong>Quorum:</strong> {{.Quorum}}%<br>
<strong>Voting eligibility:</strong> {{.Eligibility}}</p>
<h2>Attendance</h2>
{{if .Attendees}}<table>
<thead><tr><th>Member</th><th>Category</th><th>Ballots</th><th>Proxies held</th></tr></thead>
<tbody>{{range .Attendees}}<tr><td>{{.Name}}</td><td>{{.Category}}</td><td>{{.Ballots}}</td><td>{{.Proxies}}</td></tr>{{end}}</tbody>
</table>{{else}}<p>No ballots were cast.</p>{{end}}
<h2>Agenda</h2>
{{range .Items}}<h3>{{.Position}}. {{.Title}}</h3>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<p><strong>Majority:</strong> {{.MajorityType}}</p>
{{if .HasResult}}<table>
<thead><tr><th>In favor</th><th>Against</th><th>Abstain</th><th>Weighted total</th><th>Eligible</th><th>Quorum met</th></tr></thead>
<tbody><tr><td>{{.InFavor}}</td><td>{{.Against}}</td><td>{{.Abstain}}</td><td>{{.Total}}</td><td>{{.Eligible}}</td><td>{{.QuorumMet}}</td></tr></tbody>
</table>
<p><strong>Outcome:</strong> {{.Outcome}}</p>{{else}}<p>Not voted ({{.Status}}).</p>{{end}}
{{end}}<p><em>Generated {{.GeneratedAt}}</em></p>
</body></html>`))
