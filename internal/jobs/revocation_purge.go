package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"feedtrack/internal/config"
)

type Purger interface {
	PurgeRevokedTokens(ctx context.Context, now time.Time) (int64, error)
}

// StartRevocationPurgeJob periodically deletes revoked_tokens rows whose
// token has expired. It returns immediately; the ticker stops with ctx.
func StartRevocationPurgeJob(ctx context.Context, cfg config.Config, purger Purger, logger *zap.Logger) {
	if !cfg.RevocationPurgeEnabled {
		return
	}
	if purger == nil {
		logger.Info("revocation purge job disabled: no table-backed revocation store")
		return
	}
	interval := cfg.RevocationPurgeInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	timeout := cfg.RevocationPurgeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purgeOnce(ctx, purger, timeout, logger)
			}
		}
	}()
}

func purgeOnce(ctx context.Context, purger Purger, timeout time.Duration, logger *zap.Logger) {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	purged, err := purger.PurgeRevokedTokens(tickCtx, time.Now().UTC())
	if err != nil {
		logger.Warn("revocation purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		logger.Info("revocation purge removed expired entries", zap.Int64("count", purged))
	}
}
