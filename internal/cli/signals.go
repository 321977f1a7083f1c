package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/logging"
	"signal-recorder/internal/mirror"
	"signal-recorder/internal/models"
	"signal-recorder/internal/normalize"
	"signal-recorder/internal/store"
)

func newSignalsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "signals",
		Aliases: []string{"sig"},
		Short:   "Inspect recorded signals",
		Long:    "List, export and mirror the signals stored by the webhook receiver.",
	}

	cmd.AddCommand(newSignalsListCmd(app))
	cmd.AddCommand(newSignalsExportCmd(app))
	cmd.AddCommand(newSignalsMirrorCmd(app))

	return cmd
}

func newSignalsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored signals",
		Example: `  recorder signals list
  recorder signals list --symbol BTCUSD --limit 20
  recorder signals list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			symbol, _ := cmd.Flags().GetString("symbol")
			limit, _ := cmd.Flags().GetInt("limit")

			records, err := app.readSignals(cmd.Context())
			if err != nil {
				return err
			}
			records = filterSignals(records, symbol, limit)

			if output.IsJSON() {
				return output.JSON(records)
			}
			if len(records) == 0 {
				output.Info("No signals recorded")
				return nil
			}

			table := NewTable(output, "#", "SYMBOL", "EVENT", "PRICE", "TIME")
			for i, r := range records {
				table.AddRow(
					fmt.Sprintf("%d", i+1),
					TruncateString(r.Symbol, 20),
					output.EventColor(r.Event),
					FormatPrice(r.Price),
					r.Time,
				)
			}
			table.Render()
			output.Dim("%d signal(s) in %s", len(records), app.Config.Timezone())
			return nil
		},
	}

	cmd.Flags().String("symbol", "", "only show this symbol")
	cmd.Flags().Int("limit", 0, "show only the most recent N signals")

	return cmd
}

func newSignalsExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored signals as CSV",
		Example: `  recorder signals export > signals.csv
  recorder signals export -o /tmp/signals.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath, _ := cmd.Flags().GetString("output")

			records, err := app.readSignals(cmd.Context())
			if err != nil {
				return err
			}

			if outPath == "" {
				return store.EncodeCSV(cmd.OutOrStdout(), records)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := store.EncodeCSV(f, records); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}

			NewOutput(cmd).Success("Exported %d signal(s) to %s", len(records), outPath)
			return nil
		},
	}

	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")

	return cmd
}

func newSignalsMirrorCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Push the current store to every enabled mirror now",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sinks := mirror.BuildSinks(app.Config.Mirror)
			if len(sinks) == 0 {
				output.Warning("No mirror targets enabled")
				return nil
			}

			records, err := app.readSignals(cmd.Context())
			if err != nil {
				return err
			}
			snapshot := mirror.NewSnapshot(records)

			results := make(map[string]string, len(sinks))
			var failed int
			for _, sink := range sinks {
				err := pushOnce(cmd.Context(), app, sink, snapshot)
				if err != nil {
					failed++
					results[sink.Name()] = apperrors.MessageOf(err)
					if !output.IsJSON() {
						output.Error("%s: %v", sink.Name(), err)
					}
				} else {
					results[sink.Name()] = "ok"
					if !output.IsJSON() {
						output.Success("%s: mirrored %d signal(s)", sink.Name(), len(records))
					}
				}
				if c, ok := sink.(interface{ Close() error }); ok {
					c.Close()
				}
			}

			if output.IsJSON() {
				output.JSON(results)
			}
			if failed > 0 {
				return apperrors.NewMirrorError("mirror", fmt.Errorf("%d of %d sink(s) failed", failed, len(sinks)))
			}
			return nil
		},
	}
	return cmd
}

func pushOnce(ctx context.Context, app *App, sink mirror.Sink, snapshot mirror.Snapshot) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, app.Config.Mirror.Timeout)
	defer cancel()

	start := time.Now()
	err := sink.Mirror(ctx, snapshot)
	if err != nil {
		err = apperrors.NewMirrorError(sink.Name(), err)
	}
	logging.LogMirror(app.Logger, sink.Name(), len(snapshot.Records), time.Since(start), err)
	return err
}

func newNormalizeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <utc-time>...",
		Short: "Convert UTC alert timestamps to the configured timezone",
		Example: `  recorder normalize 2025-07-14T15:30:45Z
  recorder normalize --timezone America/New_York 2025-01-01T00:00:00Z`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			zone, _ := cmd.Flags().GetString("timezone")
			if zone == "" {
				zone = app.Config.Timezone()
			}
			n, err := normalize.NewNormalizer(zone)
			if err != nil {
				return err
			}

			converted := make(map[string]string, len(args))
			for _, arg := range args {
				local, err := n.Normalize(arg)
				if err != nil {
					return err
				}
				converted[arg] = local
				if !output.IsJSON() {
					output.Printf("%s  ->  %s\n", arg, local)
				}
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"timezone":  n.Zone(),
					"converted": converted,
				})
			}
			return nil
		},
	}

	cmd.Flags().String("timezone", "", "target timezone (default: signals.timezone)")

	return cmd
}

func (app *App) readSignals(ctx context.Context) ([]models.SignalRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := app.openStore()
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.ReadAll(ctx)
}

// filterSignals keeps records for symbol (case-insensitive, all when empty)
// and then the last limit of them (all when limit <= 0).
func filterSignals(records []models.SignalRecord, symbol string, limit int) []models.SignalRecord {
	if symbol != "" {
		filtered := make([]models.SignalRecord, 0, len(records))
		for _, r := range records {
			if strings.EqualFold(r.Symbol, symbol) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records
}
