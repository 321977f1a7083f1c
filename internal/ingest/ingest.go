// Package ingest turns webhook payloads into persisted signal records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/logging"
	"signal-recorder/internal/mirror"
	"signal-recorder/internal/models"
	"signal-recorder/internal/normalize"
	"signal-recorder/internal/store"
)

// Metrics receives per-request outcomes.
type Metrics interface {
	RecordSignal(outcome string)
	RecordLastPrice(symbol string, price float64)
	RecordAppend(seconds float64)
}

// Ingestor runs the validate, normalize, append, notify pipeline.
type Ingestor struct {
	normalizer *normalize.Normalizer
	store      store.SignalStore
	hook       mirror.Hook
	metrics    Metrics
	logger     zerolog.Logger
	validate   *validator.Validate
}

// Option customizes an Ingestor.
type Option func(*Ingestor)

// WithMirror notifies hook after every successful append.
func WithMirror(hook mirror.Hook) Option {
	return func(i *Ingestor) { i.hook = hook }
}

// WithMetrics records outcomes on m.
func WithMetrics(m Metrics) Option {
	return func(i *Ingestor) { i.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Ingestor) { i.logger = logger }
}

// New creates an Ingestor writing to s in the normalizer's zone.
func New(n *normalize.Normalizer, s store.SignalStore, opts ...Option) *Ingestor {
	i := &Ingestor{
		normalizer: n,
		store:      s,
		logger:     zerolog.Nop(),
		validate:   validator.New(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Store returns the underlying store for read-back.
func (i *Ingestor) Store() store.SignalStore {
	return i.store
}

// Ingest validates payload, normalizes its time and appends the record.
// Parse and timezone failures are detected before anything is written.
func (i *Ingestor) Ingest(ctx context.Context, payload models.WebhookPayload) (models.SignalRecord, error) {
	record, err := i.ingest(ctx, payload)

	if i.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = string(apperrors.KindOf(err))
		}
		i.metrics.RecordSignal(outcome)
	}
	return record, err
}

func (i *Ingestor) ingest(ctx context.Context, payload models.WebhookPayload) (models.SignalRecord, error) {
	logger := logging.FromContext(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = i.logger
	}

	if err := i.checkPayload(payload); err != nil {
		logger.Warn().Err(err).Msg("Rejected webhook payload")
		return models.SignalRecord{}, err
	}

	localTime, err := i.normalizer.Normalize(payload.Time)
	if err != nil {
		logger.Warn().Err(err).Str("time", payload.Time).Msg("Failed to normalize signal time")
		return models.SignalRecord{}, err
	}

	record := models.SignalRecord{
		Symbol: strings.TrimSpace(payload.Symbol),
		Event:  strings.TrimSpace(payload.Event),
		Price:  *payload.Price,
		Time:   localTime,
	}

	start := time.Now()
	if err := i.store.Append(ctx, record); err != nil {
		logger.Error().Err(err).Str("symbol", record.Symbol).Msg("Failed to append signal")
		return models.SignalRecord{}, err
	}
	if i.metrics != nil {
		i.metrics.RecordAppend(time.Since(start).Seconds())
		i.metrics.RecordLastPrice(record.Symbol, record.Price)
	}
	logging.LogSignal(logger, record)

	i.notify(ctx, logger)
	return record, nil
}

// notify hands the current contents to the mirror hook. Any failure here is
// logged and swallowed; the append has already succeeded. Concurrent requests
// may reach the hook out of order, and the hook discards the older snapshot.
func (i *Ingestor) notify(ctx context.Context, logger zerolog.Logger) {
	if i.hook == nil {
		return
	}
	records, err := i.store.ReadAll(ctx)
	if err != nil {
		logger.Warn().Err(apperrors.NewMirrorError("snapshot", err)).Msg("Skipping mirror, snapshot read failed")
		return
	}
	i.hook.OnAppended(mirror.NewSnapshot(records))
}

func (i *Ingestor) checkPayload(payload models.WebhookPayload) error {
	if err := i.validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			return apperrors.NewParseError("ingest", fmt.Sprintf("missing required field(s): %s", strings.Join(fields, ", ")), nil)
		}
		return apperrors.NewParseError("ingest", "invalid payload", err)
	}
	if strings.TrimSpace(payload.Symbol) == "" || strings.TrimSpace(payload.Event) == "" {
		return apperrors.NewParseError("ingest", "symbol and event must not be blank", nil)
	}
	return nil
}
