// billingd is the standalone billing daemon. It shares the reconciliation
// code path with the main service's embedded scheduler and coordinates with
// it purely through heartbeat rows in the store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/skystack/fleetbill/internal/activity"
	"github.com/skystack/fleetbill/internal/billingcycle"
	"github.com/skystack/fleetbill/internal/clock"
	"github.com/skystack/fleetbill/internal/config"
	"github.com/skystack/fleetbill/internal/daemon"
	"github.com/skystack/fleetbill/internal/daemonstatus"
	"github.com/skystack/fleetbill/internal/logger"
	"github.com/skystack/fleetbill/internal/migration"
	"github.com/skystack/fleetbill/internal/wallet"
	"github.com/skystack/fleetbill/pkg/db"
	"github.com/skystack/fleetbill/pkg/retry"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "billingd: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		logger.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(OpenStore),
		clock.Module,
		migration.Module,

		billingcycle.Module,
		wallet.Module,
		activity.Module,
		daemonstatus.Module,

		// No server module: the daemon is headless.
		daemon.Module,
		fx.Invoke(daemon.Start),
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	// Node 2 keeps daemon-generated ids distinct from the main service.
	return snowflake.NewNode(2)
}

// OpenStore connects with bounded exponential backoff, then registers the
// usual close hook. Exhausting the retry budget aborts startup, and fx exits
// non-zero before any timer is armed.
func OpenStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	policy := retry.Policy{
		MaxAttempts: cfg.ConnectMaxAttempts,
		BaseDelay:   cfg.ConnectBaseDelay,
		Multiplier:  2.0,
	}
	conn, err := db.OpenWithRetry(context.Background(), cfg, log.Named("db"), policy)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			sqlDB, dbErr := conn.DB()
			if dbErr != nil {
				return dbErr
			}
			return sqlDB.Close()
		},
	})
	return conn, nil
}
