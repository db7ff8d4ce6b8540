package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ceskypane/epicgo/events"
	"github.com/ceskypane/epicgo/internal/backoff"
	"github.com/ceskypane/epicgo/logging"
)

// Refresher exchanges the current token set for a fresh one.
type Refresher interface {
	Refresh(ctx context.Context, current TokenSet) (TokenSet, error)
}

// SchedulerConfig configures the opt-in background refresh loop. The lazy
// refresh path in the request pipeline never retries; this loop is the
// application-level maintenance that keeps a long-lived session warm.
type SchedulerConfig struct {
	TokenStore         TokenStore
	Refresher          Refresher
	Bus                *events.Bus
	RefreshSkew        time.Duration
	MinRefreshInterval time.Duration
	RetryMinBackoff    time.Duration
	RetryMaxBackoff    time.Duration
	Now                func() time.Time
	After              func(d time.Duration) <-chan time.Time
	Logger             logging.Logger
}

type RefreshScheduler struct {
	cfg SchedulerConfig
}

func NewRefreshScheduler(cfg SchedulerConfig) (*RefreshScheduler, error) {
	if cfg.TokenStore == nil {
		return nil, errors.New("auth: token store is required")
	}

	if cfg.Refresher == nil {
		return nil, errors.New("auth: refresher is required")
	}

	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}

	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = 30 * time.Second
	}

	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = time.Second
	}

	if cfg.RetryMinBackoff <= 0 {
		cfg.RetryMinBackoff = 250 * time.Millisecond
	}

	if cfg.RetryMaxBackoff < cfg.RetryMinBackoff {
		cfg.RetryMaxBackoff = 5 * time.Second
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.After == nil {
		cfg.After = time.After
	}

	cfg.Logger = logging.With(cfg.Logger)

	return &RefreshScheduler{cfg: cfg}, nil
}

// Run refreshes the stored token set shortly before each expiry until ctx
// ends or the refresh grant is rejected as dead (invalid_grant).
func (s *RefreshScheduler) Run(ctx context.Context) {
	failures := 0

	for ctx.Err() == nil {
		tokens, ok, err := s.cfg.TokenStore.Load(ctx)
		if err != nil {
			s.cfg.Logger.Warn("refresh scheduler: token load failed", logging.F("error", err.Error()))
			if !s.wait(ctx, s.cfg.MinRefreshInterval) {
				return
			}

			continue
		}

		if !ok {
			if !s.wait(ctx, s.cfg.MinRefreshInterval) {
				return
			}

			continue
		}

		delay := tokens.ExpiresAt.Add(-s.cfg.RefreshSkew).Sub(s.cfg.Now())
		if failures > 0 {
			delay = backoff.Exponential(failures-1, s.cfg.RetryMinBackoff, s.cfg.RetryMaxBackoff)
		}

		if delay < s.cfg.MinRefreshInterval {
			delay = s.cfg.MinRefreshInterval
		}

		if !s.wait(ctx, delay) {
			return
		}

		current, ok, err := s.cfg.TokenStore.Load(ctx)
		if err != nil || !ok {
			continue
		}

		updated, refreshErr := s.cfg.Refresher.Refresh(ctx, current)
		if refreshErr != nil {
			if IsFatal(refreshErr) {
				s.cfg.Logger.Error("refresh scheduler: refresh grant is dead", logging.F("error", refreshErr.Error()))
				s.emit(events.AuthFatal{Base: events.Base{At: s.cfg.Now().UTC()}, Err: refreshErr})
				return
			}

			failures++
			s.cfg.Logger.Warn("refresh scheduler: refresh failed", logging.F("error", refreshErr.Error()))
			s.emit(events.AuthRefreshFailed{Base: events.Base{At: s.cfg.Now().UTC()}, Err: refreshErr})
			continue
		}

		if saveErr := s.cfg.TokenStore.Save(ctx, updated); saveErr != nil {
			failures++
			s.emit(events.AuthRefreshFailed{Base: events.Base{At: s.cfg.Now().UTC()}, Err: fmt.Errorf("save token set: %w", saveErr)})
			continue
		}

		failures = 0
		s.cfg.Logger.Info("refresh scheduler: refreshed", logging.F("expires_at", updated.ExpiresAt.UTC().Format(time.RFC3339)))
		s.emit(events.AuthRefreshed{Base: events.Base{At: s.cfg.Now().UTC()}, ExpiresAt: updated.ExpiresAt})
	}
}

func (s *RefreshScheduler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = s.cfg.MinRefreshInterval
	}

	select {
	case <-ctx.Done():
		return false
	case <-s.cfg.After(d):
		return true
	}
}

func (s *RefreshScheduler) emit(evt events.Event) {
	_ = s.cfg.Bus.Emit(evt)
}
