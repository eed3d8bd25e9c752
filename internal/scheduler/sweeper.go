package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-ilp-api/pkg/config"
)

const (
	openerLockKey = "sweep:lock:opener"
	expiryLockKey = "sweep:lock:expiry"
)

type assessmentOpener interface {
	OpenAvailableAssessments(ctx context.Context) (int, error)
}

type graceExpirer interface {
	ProcessExpiredAssessments(ctx context.Context) (int, error)
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Sweeper drives the recurring accessibility sweeps. Ticks run sequentially
// in one goroutine, so sweeps never overlap in-process; a redis lease keyed
// per task keeps replicated deployments from sweeping concurrently.
type Sweeper struct {
	opener   assessmentOpener
	expirer  graceExpirer
	leases   leaseStore
	cfg      config.SweeperConfig
	logger   *zap.Logger
	instance string
}

// NewSweeper wires the sweep loop. leases may be nil for single-replica
// deployments; ticks then rely on in-process serialization alone.
func NewSweeper(opener assessmentOpener, expirer graceExpirer, leases leaseStore, cfg config.SweeperConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		opener:   opener,
		expirer:  expirer,
		leases:   leases,
		cfg:      cfg,
		logger:   logger,
		instance: uuid.NewString(),
	}
}

// Run blocks until ctx is cancelled, firing the opener and expiry sweeps on
// their configured intervals. A failed sweep is logged and simply retried on
// its next tick.
func (s *Sweeper) Run(ctx context.Context) {
	openerTicker := time.NewTicker(s.cfg.OpenerInterval)
	defer openerTicker.Stop()
	expiryTicker := time.NewTicker(s.cfg.ExpiryInterval)
	defer expiryTicker.Stop()

	s.logger.Sugar().Infow("sweeper started",
		"opener_interval", s.cfg.OpenerInterval,
		"expiry_interval", s.cfg.ExpiryInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Sugar().Infow("sweeper stopped")
			return
		case <-openerTicker.C:
			s.RunOpener(ctx)
		case <-expiryTicker.C:
			s.RunExpiry(ctx)
		}
	}
}

// RunOpener executes one opener sweep under the task lease.
func (s *Sweeper) RunOpener(ctx context.Context) {
	s.withLease(ctx, openerLockKey, func() {
		opened, err := s.opener.OpenAvailableAssessments(ctx)
		if err != nil {
			s.logger.Sugar().Errorw("opener sweep failed", "opened", opened, "error", err)
			return
		}
		if opened > 0 {
			s.logger.Sugar().Infow("opener sweep opened assessments", "opened", opened)
		}
	})
}

// RunExpiry executes one grace expiry sweep under the task lease.
func (s *Sweeper) RunExpiry(ctx context.Context) {
	s.withLease(ctx, expiryLockKey, func() {
		processed, err := s.expirer.ProcessExpiredAssessments(ctx)
		if err != nil {
			s.logger.Sugar().Errorw("expiry sweep failed", "processed", processed, "error", err)
			return
		}
		if processed > 0 {
			s.logger.Sugar().Warnw("expiry sweep marked assessments incomplete", "processed", processed)
		}
	})
}

func (s *Sweeper) withLease(ctx context.Context, key string, run func()) {
	if s.leases == nil {
		run()
		return
	}

	acquired, err := s.leases.SetNX(ctx, key, s.instance, s.cfg.LockTTL).Result()
	if err != nil {
		// Lease state unknown; skip this tick.
		s.logger.Sugar().Warnw("sweep lease unavailable, skipping tick", "key", key, "error", err)
		return
	}
	if !acquired {
		s.logger.Sugar().Debugw("sweep lease held elsewhere, skipping tick", "key", key)
		return
	}
	defer s.release(ctx, key)

	run()
}

func (s *Sweeper) release(ctx context.Context, key string) {
	holder, err := s.leases.Get(ctx, key).Result()
	if err != nil || holder != s.instance {
		return
	}
	if err := s.leases.Del(ctx, key).Err(); err != nil {
		s.logger.Sugar().Warnw("failed to release sweep lease", "key", key, "error", err)
	}
}
