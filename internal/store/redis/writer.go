package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"meanrev-traderv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: ~3h of 1s bars + buffer
	barStreamMaxLen  = 12000
	defaultLatestTTL = 30 * time.Minute

	breakerFailures = 5
	breakerCooldown = 10 * time.Second
)

// WriterConfig configures the Redis bar publisher.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Symbol   string // instrument key used in stream and latest keys
}

// Writer publishes completed 1s bars to Redis for downstream consumers
// (dashboards, other strategies). Each bar goes out as a pipelined
// XADD + SET latest + PUBLISH. All writes run through a circuit breaker
// so that a Redis outage sheds publishes instead of backing up the
// pipeline.
type Writer struct {
	client  *goredis.Client
	breaker *Breaker

	streamKey string
	latestKey string
	pubsubCh  string

	// OnBreakerTrip is called each time the breaker opens (optional).
	OnBreakerTrip func()
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	w := &Writer{
		client:    client,
		breaker:   NewBreaker(breakerFailures, breakerCooldown),
		streamKey: "bar:1s:" + cfg.Symbol,
		latestKey: "bar:1s:latest:" + cfg.Symbol,
		pubsubCh:  "pub:bar:1s:" + cfg.Symbol,
	}
	w.breaker.OnStateChange = func(from, to State) {
		log.Printf("[redis] breaker %s -> %s", from, to)
		if to == StateOpen && w.OnBreakerTrip != nil {
			w.OnBreakerTrip()
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return w, nil
}

// BreakerState returns the publish breaker state for health reporting.
func (w *Writer) BreakerState() State {
	return w.breaker.CurrentState()
}

// Run reads bars from barCh and publishes them until ctx is cancelled or
// barCh is closed. Publish failures are logged and dropped; bars are not
// retried.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			if err := w.writeBar(ctx, bar); err != nil {
				if err == ErrOpen {
					continue // breaker already logged the transition
				}
				log.Printf("[redis] publish bar ts=%d: %v", bar.IntervalStart, err)
			}
		}
	}
}

// writeBar performs the pipelined publish for one bar through the breaker.
func (w *Writer) writeBar(ctx context.Context, bar model.Bar) error {
	jsonData := string(bar.JSON())

	return w.breaker.Do(func() error {
		pipe := w.client.Pipeline()
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: w.streamKey,
			MaxLen: barStreamMaxLen,
			Approx: true,
			Values: map[string]interface{}{"data": jsonData},
		})
		pipe.Set(ctx, w.latestKey, jsonData, defaultLatestTTL)
		pipe.Publish(ctx, w.pubsubCh, jsonData)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// Close closes the Redis connection.
func (w *Writer) Close() error {
	return w.client.Close()
}
