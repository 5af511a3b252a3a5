package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/skystack/fleetbill/internal/activity"
	"github.com/skystack/fleetbill/internal/billingcycle"
	"github.com/skystack/fleetbill/internal/clock"
	"github.com/skystack/fleetbill/internal/config"
	"github.com/skystack/fleetbill/internal/daemonstatus"
	"github.com/skystack/fleetbill/internal/logger"
	"github.com/skystack/fleetbill/internal/migration"
	"github.com/skystack/fleetbill/internal/scheduler"
	"github.com/skystack/fleetbill/internal/seed"
	"github.com/skystack/fleetbill/internal/server"
	"github.com/skystack/fleetbill/internal/wallet"
	"github.com/skystack/fleetbill/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		billingcycle.Module,
		wallet.Module,
		activity.Module,
		daemonstatus.Module,

		scheduler.Module,
		server.Module,

		fx.Invoke(seedDemoData),
		fx.Invoke(scheduler.Start),
	)
	app.Run()
}

func seedDemoData(cfg config.Config, conn *gorm.DB, node *snowflake.Node, clk clock.Clock) error {
	if !cfg.SeedDemoData {
		return nil
	}
	return seed.EnsureDemoData(conn, node, clk.Now())
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
