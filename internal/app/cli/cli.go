package cli

import (
	"fmt"
	"log/slog"
	"os"

	"bureausocial/internal/platform/config"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

// Flags shared by every bureausocial binary.
type Flags struct {
	Debug      bool
	ConfigFile string
}

func (f *Flags) Register(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&f.Debug, "debug", "D", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&f.ConfigFile, "config", "", "path to config file")
}

// Setup configures the process logger and GOMAXPROCS, then loads config.
func (f *Flags) Setup(program string) (config.Config, *slog.Logger, error) {
	level := slog.LevelInfo
	if f.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: f.Debug,
		Level:     level,
	}))
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		logger.Info(fmt.Sprintf(format, v...), "component", program)
	})); err != nil {
		return config.Config{}, nil, fmt.Errorf("set maxprocs: %w", err)
	}

	cfg, err := config.Load(f.ConfigFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
