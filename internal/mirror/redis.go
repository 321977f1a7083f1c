package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"signal-recorder/internal/store"
)

// RedisConfig holds the Redis mirror target.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RedisSink stores the latest snapshot under <prefix>:snapshot together
// with the record count and the newest record. Every write overwrites, so a
// retried delivery leaves the same state as a single one.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSink creates a client for cfg. The connection is established lazily.
func NewRedisSink(cfg RedisConfig) *RedisSink {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "signal-recorder"
	}
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:         cfg.Addr,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		}),
		prefix: prefix,
		ttl:    cfg.TTL,
	}
}

// Name returns the name of the sink.
func (r *RedisSink) Name() string {
	return "redis"
}

// Close closes the Redis connection.
func (r *RedisSink) Close() error {
	return r.client.Close()
}

func (r *RedisSink) key(suffix string) string {
	return r.prefix + ":" + suffix
}

// Mirror writes the snapshot in one MULTI/EXEC block.
func (r *RedisSink) Mirror(ctx context.Context, snapshot Snapshot) error {
	var csvBody bytes.Buffer
	if err := store.EncodeCSV(&csvBody, snapshot.Records); err != nil {
		return err
	}

	var latest []byte
	if rec, ok := snapshot.Latest(); ok {
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal latest record: %w", err)
		}
		latest = b
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("snapshot"), csvBody.Bytes(), r.ttl)
		pipe.Set(ctx, r.key("count"), len(snapshot.Records), r.ttl)
		pipe.Set(ctx, r.key("snapshot_id"), snapshot.ID, r.ttl)
		pipe.Set(ctx, r.key("updated_at"), snapshot.TakenAt.Format(time.RFC3339), r.ttl)
		if latest != nil {
			pipe.Set(ctx, r.key("latest"), latest, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis mirror: %w", err)
	}
	return nil
}
