package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"signal-recorder/internal/config"
	"signal-recorder/internal/logging"
	"signal-recorder/internal/metrics"
	"signal-recorder/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-07-14"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Recorder

	// loadLogger is false when the caller supplied a logger explicitly.
	loadLogger bool
}

// NewRootCmd creates the root command for the CLI.
// A nil cfg is loaded from --config (or the default directory) before any
// subcommand runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config:     cfg,
		Logger:     logger,
		loadLogger: cfg == nil,
	}

	rootCmd := &cobra.Command{
		Use:   "recorder",
		Short: "Signal Recorder - TradingView webhook alert recorder",
		Long: `Signal Recorder receives TradingView webhook alerts, converts their UTC
timestamps to a configured local timezone and appends them to a signal store.

Stored signals can be listed, exported as CSV and mirrored to remote targets.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ensureConfig(cmd); err != nil {
				return err
			}
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/signal-recorder)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newSignalsCmd(app))
	rootCmd.AddCommand(newNormalizeCmd(app))

	return rootCmd
}

func (app *App) ensureConfig(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	if app.Config != nil && (dir == "" || dir == app.Config.Dir) {
		return nil
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	app.Config = cfg
	if app.loadLogger {
		app.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	}
	app.Logger.Debug().Str("dir", cfg.Dir).Msg("Configuration loaded")
	return nil
}

// openStore opens the configured signal store.
func (app *App) openStore() (store.SignalStore, error) {
	s, err := store.Open(app.Config.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open signal store: %w", err)
	}
	app.Logger.Debug().
		Str("backend", app.Config.Store.Backend).
		Str("path", app.Config.Store.Path).
		Msg("Signal store opened")
	return s, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Signal Recorder v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the recorder configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": app.Config.Dir})
			} else {
				output.Println(app.Config.Dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Server")
	output.Printf("  Address:         %s\n", cfg.Server.Addr)
	output.Printf("  Body limit:      %s\n", cfg.Server.BodyLimit)
	output.Printf("  Shutdown:        %s\n", cfg.Server.ShutdownTimeout)
	output.Println()

	output.Bold("Signals")
	output.Printf("  Timezone:        %s\n", cfg.Signals.Timezone)
	output.Println()

	output.Bold("Store")
	output.Printf("  Backend:         %s\n", cfg.Store.Backend)
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Mirror")
	output.Printf("  Webhook:         %v\n", cfg.Mirror.Webhook.Enabled)
	output.Printf("  Redis:           %v\n", cfg.Mirror.Redis.Enabled)
	output.Printf("  File:            %v\n", cfg.Mirror.File.Enabled)
	output.Printf("  Queue size:      %d\n", cfg.Mirror.QueueSize)
	output.Printf("  Max attempts:    %d\n", cfg.Mirror.MaxAttempts)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %s\n", cfg.Logging.FilePath)
}
