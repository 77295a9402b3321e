package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepGate limits how many instances run a sweep cycle at once. The sweep
// is idempotent either way (every write is PENDING-guarded); the gate only
// avoids duplicate work across replicas.
type SweepGate interface {
	// TryAcquire reports whether this instance should run the cycle.
	TryAcquire(ctx context.Context) (bool, error)
}

// RedisSweepGate implements SweepGate with a SETNX lease.
type RedisSweepGate struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration

	id string
}

func NewRedisSweepGate(client *redis.Client, key string, ttl time.Duration) *RedisSweepGate {
	if key == "" {
		key = "lifecycle:sweep:lease"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSweepGate{Client: client, Key: key, TTL: ttl, id: uuid.NewString()}
}

func (g *RedisSweepGate) TryAcquire(ctx context.Context) (bool, error) {
	return g.Client.SetNX(ctx, g.Key, g.id, g.TTL).Result()
}

// Sweeper periodically applies the auto-confirm timeout by calling the same
// idempotent engine operation available to synchronous callers. Missing a
// cycle only delays auto-confirmation; it never corrupts state.
type Sweeper struct {
	Engine   *Service
	Interval time.Duration
	Gate     SweepGate // optional
	Log      *slog.Logger
}

// Run blocks until ctx is cancelled, sweeping once immediately and then on
// every tick.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.sweep(ctx, log)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx, log)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, log *slog.Logger) {
	if s.Gate != nil {
		ok, err := s.Gate.TryAcquire(ctx)
		if err != nil {
			log.Warn("sweep gate check failed, running anyway", "err", err)
		} else if !ok {
			return
		}
	}

	n, err := s.Engine.AutoConfirmOverdue(ctx)
	if err != nil {
		log.Error("auto-confirm sweep failed", "err", err)
		return
	}
	if n > 0 {
		log.Info("auto-confirm sweep", "confirmed", n)
	}
}
