package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"signal-recorder/internal/ingest"
	"signal-recorder/internal/metrics"
	"signal-recorder/internal/mirror"
	"signal-recorder/internal/normalize"
	"signal-recorder/internal/server"
	"signal-recorder/internal/store"
)

// pipeline is everything the webhook server needs, wired from config.
type pipeline struct {
	store      store.SignalStore
	dispatcher *mirror.Dispatcher
	sinks      []mirror.Sink
	ingestor   *ingest.Ingestor
	zone       string
}

// buildPipeline wires the normalizer, store, mirror and ingestor.
func (app *App) buildPipeline(m *metrics.Recorder) (*pipeline, error) {
	n, err := normalize.NewNormalizer(app.Config.Signals.Timezone)
	if err != nil {
		return nil, err
	}

	s, err := app.openStore()
	if err != nil {
		return nil, err
	}

	sinks := mirror.BuildSinks(app.Config.Mirror)
	d, err := mirror.NewDispatcher(app.Config.Mirror.Config, app.Logger, m, sinks...)
	if err != nil {
		s.Close()
		return nil, err
	}

	opts := []ingest.Option{ingest.WithLogger(app.Logger), ingest.WithMetrics(m)}
	if len(sinks) > 0 {
		opts = append(opts, ingest.WithMirror(d))
	}

	return &pipeline{
		store:      s,
		dispatcher: d,
		sinks:      sinks,
		ingestor:   ingest.New(n, s, opts...),
		zone:       n.Zone(),
	}, nil
}

// close stops the mirror and releases the store and sink clients.
func (p *pipeline) close(app *App) {
	p.dispatcher.Stop(app.Config.Server.ShutdownTimeout)
	for _, sink := range p.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				app.Logger.Warn().Err(err).Str("sink", sink.Name()).Msg("Failed to close mirror sink")
			}
		}
	}
	if err := p.store.Close(); err != nil {
		app.Logger.Warn().Err(err).Msg("Failed to close signal store")
	}
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver",
		Long: `Run the HTTP webhook receiver.

Endpoints:
  GET  /          status page
  POST /webhook   record one alert {symbol, event, price, time}
  GET  /signals   list stored signals as JSON
  GET  /download  download stored signals as CSV
  GET  /healthz   liveness probe
  GET  /metrics   Prometheus metrics`,
		Example: `  recorder serve
  recorder serve --addr :8080 --timezone UTC+5:30
  recorder serve --backend csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetString("addr"); v != "" {
				app.Config.Server.Addr = v
			}
			if v, _ := cmd.Flags().GetString("timezone"); v != "" {
				app.Config.Signals.Timezone = v
			}
			if v, _ := cmd.Flags().GetString("backend"); v != "" {
				app.Config.Store.Backend = v
				app.Config.Store.Path = ""
			}
			if err := app.Config.Finalize(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.serve(ctx)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("timezone", "", "target timezone (overrides signals.timezone)")
	cmd.Flags().String("backend", "", "store backend: sqlite or csv (overrides store.backend)")

	return cmd
}

func (app *App) serve(ctx context.Context) error {
	if app.Metrics == nil {
		app.Metrics = metrics.New()
	}

	p, err := app.buildPipeline(app.Metrics)
	if err != nil {
		return err
	}
	defer p.close(app)

	// Deliveries outlive ctx so Stop can drain the queue on shutdown.
	p.dispatcher.Start(context.WithoutCancel(ctx))
	if sinks := p.dispatcher.Sinks(); len(sinks) > 0 {
		app.Logger.Info().Strs("sinks", sinks).Msg("Mirror enabled")
	}

	srv := server.New(app.Config.Server, p.ingestor, p.zone, app.Metrics, app.Logger)
	return srv.Run(ctx)
}
