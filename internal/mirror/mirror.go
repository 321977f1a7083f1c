// Package mirror copies the store's contents to remote sinks after each append.
//
// Delivery is asynchronous and best-effort: OnAppended only enqueues, a
// background worker pushes the snapshot to every sink with a per-delivery
// timeout and retry, and failures are logged and counted but never reported
// back to the ingestion path.
package mirror

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/logging"
	"signal-recorder/internal/models"
	"signal-recorder/pkg/utils"
)

// Snapshot is the full store contents at the time of an append.
type Snapshot struct {
	ID      string
	Records []models.SignalRecord
	TakenAt time.Time
}

// NewSnapshot copies records into a new Snapshot.
func NewSnapshot(records []models.SignalRecord) Snapshot {
	cp := make([]models.SignalRecord, len(records))
	copy(cp, records)
	return Snapshot{
		ID:      uuid.NewString(),
		Records: cp,
		TakenAt: time.Now().UTC(),
	}
}

// Latest returns the most recently appended record, if any.
func (s Snapshot) Latest() (models.SignalRecord, bool) {
	if len(s.Records) == 0 {
		return models.SignalRecord{}, false
	}
	return s.Records[len(s.Records)-1], true
}

// Hook is notified after every successful append.
type Hook interface {
	OnAppended(snapshot Snapshot)
}

// Sink is one remote copy of the store.
type Sink interface {
	Name() string
	Mirror(ctx context.Context, snapshot Snapshot) error
}

// Metrics receives delivery outcomes.
type Metrics interface {
	RecordMirror(sink string, ok bool)
	RecordMirrorDropped()
}

// Config controls queueing and delivery.
type Config struct {
	QueueSize      int           `mapstructure:"queue_size" default:"64"`
	Timeout        time.Duration `mapstructure:"timeout" default:"10s"`
	MaxAttempts    int           `mapstructure:"max_attempts" default:"3"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"500ms"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" default:"10s"`

	// A sink that fails BreakerThreshold deliveries in a row is skipped
	// for BreakerCooldown.
	BreakerThreshold int           `mapstructure:"breaker_threshold" default:"5"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown" default:"1m"`
}

// Dispatcher implements Hook with a bounded queue and a single worker.
//
// Concurrent appends may call OnAppended out of order, so a snapshot holding
// fewer records than one already accepted is dropped as stale. The record
// counts a sink sees are therefore non-decreasing.
type Dispatcher struct {
	cfg      Config
	sinks    []Sink
	breakers map[string]*breaker
	logger   zerolog.Logger
	metrics  Metrics

	queue   chan Snapshot
	mu      sync.Mutex
	started bool
	stopped bool
	latest  int // record count of the newest accepted snapshot
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewDispatcher creates a dispatcher for sinks. Zero config fields take defaults.
func NewDispatcher(cfg Config, logger zerolog.Logger, m Metrics, sinks ...Sink) (*Dispatcher, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply mirror defaults: %w", err)
	}
	breakers := make(map[string]*breaker, len(sinks))
	for _, s := range sinks {
		breakers[s.Name()] = newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}
	return &Dispatcher{
		cfg:      cfg,
		sinks:    sinks,
		breakers: breakers,
		logger:   logging.WithOperation(logger, "mirror"),
		metrics:  m,
		queue:    make(chan Snapshot, cfg.QueueSize),
	}, nil
}

// BreakerState reports the circuit state of the named sink.
func (d *Dispatcher) BreakerState(sink string) BreakerState {
	if b, ok := d.breakers[sink]; ok {
		return b.State()
	}
	return BreakerClosed
}

// Sinks returns the configured sink names.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start launches the delivery worker.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go d.run(ctx)
}

// Stop closes the queue, waits up to timeout for pending snapshots to be
// delivered, then cancels whatever is still in flight.
func (d *Dispatcher) Stop(timeout time.Duration) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		d.logger.Warn().Dur("timeout", timeout).Msg("Mirror queue not drained before shutdown")
	}
	d.cancel()
	<-done
}

// OnAppended enqueues snapshot without blocking. When the queue is full the
// oldest pending snapshot is discarded; the newer one supersedes it anyway.
func (d *Dispatcher) OnAppended(snapshot Snapshot) {
	if len(d.sinks) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if len(snapshot.Records) < d.latest {
		d.logger.Debug().
			Str("snapshot_id", snapshot.ID).
			Int("records", len(snapshot.Records)).
			Int("latest", d.latest).
			Msg("Dropping stale mirror snapshot")
		if d.metrics != nil {
			d.metrics.RecordMirrorDropped()
		}
		return
	}
	d.latest = len(snapshot.Records)

	for {
		select {
		case d.queue <- snapshot:
			return
		default:
		}

		select {
		case old := <-d.queue:
			d.logger.Warn().Str("snapshot_id", old.ID).Msg("Mirror queue full, dropping oldest snapshot")
			if d.metrics != nil {
				d.metrics.RecordMirrorDropped()
			}
		default:
		}
	}
}

// retryConfig overlays the configured attempts and backoff on the package
// retry defaults.
func (d *Dispatcher) retryConfig() utils.RetryConfig {
	rc := utils.DefaultRetryConfig()
	if d.cfg.MaxAttempts > 0 {
		rc.MaxAttempts = d.cfg.MaxAttempts
	}
	if d.cfg.InitialBackoff > 0 {
		rc.InitialDelay = d.cfg.InitialBackoff
	}
	if d.cfg.MaxBackoff > 0 {
		rc.MaxDelay = d.cfg.MaxBackoff
	}
	return rc
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for snapshot := range d.queue {
		d.deliver(ctx, snapshot)
	}
}

// deliver pushes one snapshot to every sink. Errors stop at this boundary.
func (d *Dispatcher) deliver(ctx context.Context, snapshot Snapshot) {
	retry := d.retryConfig()

	for _, sink := range d.sinks {
		b := d.breakers[sink.Name()]
		if err := b.allow(); err != nil {
			d.logger.Debug().Str("sink", sink.Name()).Str("snapshot_id", snapshot.ID).Msg("Skipping tripped mirror sink")
			if d.metrics != nil {
				d.metrics.RecordMirror(sink.Name(), false)
			}
			continue
		}

		start := time.Now()
		err := utils.Retry(ctx, retry, func(attempt int) error {
			attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
			defer cancel()
			if err := sink.Mirror(attemptCtx, snapshot); err != nil {
				d.logger.Debug().Err(err).Str("sink", sink.Name()).Int("attempt", attempt+1).Msg("Mirror attempt failed")
				return err
			}
			return nil
		})
		b.record(err)
		if err != nil {
			err = apperrors.NewMirrorError(sink.Name(), err)
		}

		logging.LogMirror(d.logger.With().Str("snapshot_id", snapshot.ID).Logger(), sink.Name(), len(snapshot.Records), time.Since(start), err)
		if d.metrics != nil {
			d.metrics.RecordMirror(sink.Name(), err == nil)
		}
	}
}
