package db

import (
	"context"

	"github.com/skystack/fleetbill/internal/config"
	"github.com/skystack/fleetbill/pkg/retry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenWithRetry connects with exponential backoff. Used by the billing
// daemon, which may start before the database is reachable.
func OpenWithRetry(ctx context.Context, cfg config.Config, log *zap.Logger, policy retry.Policy) (*gorm.DB, error) {
	var conn *gorm.DB
	attempt := 0
	err := policy.Do(ctx, func() error {
		attempt++
		c, openErr := Open(cfg)
		if openErr != nil {
			log.Warn("database connect failed",
				zap.Int("attempt", attempt),
				zap.Error(openErr),
			)
			return openErr
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
