// Package seed provisions demo data for local development: one funded
// wallet and a few instances with different backup configurations, enough
// to watch a billing pass do real work.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	instancedomain "github.com/skystack/fleetbill/internal/instance/domain"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
	"gorm.io/gorm"
)

const demoOrgName = "demo"

// EnsureDemoData seeds the demo wallet and instances once. Re-running is a
// no-op: presence of any instance named demo-* means the data already exists.
func EnsureDemoData(db *gorm.DB, node *snowflake.Node, now time.Time) error {
	if db == nil || node == nil {
		return errors.New("seed requires a database handle and an id generator")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&instancedomain.Instance{}).
			Where("name LIKE ?", demoOrgName+"-%").Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		orgID := node.Generate()
		wallet := walletdomain.Wallet{
			ID:        node.Generate(),
			OrgID:     orgID,
			Balance:   decimal.NewFromInt(100),
			Currency:  "USD",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}

		instances := []instancedomain.Instance{
			{
				ID:                 node.Generate(),
				OrgID:              orgID,
				Name:               demoOrgName + "-web",
				BaseMonthlyPrice:   decimal.NewFromFloat(65.70),
				MarkupMonthlyPrice: decimal.NewFromFloat(7.30),
				BackupConfig:       instancedomain.BackupNone,
				CreatedAt:          now,
			},
			{
				ID:                 node.Generate(),
				OrgID:              orgID,
				Name:               demoOrgName + "-db",
				BaseMonthlyPrice:   decimal.NewFromFloat(146),
				BackupMonthlyPrice: decimal.NewFromFloat(14.60),
				BackupConfig:       instancedomain.BackupDaily,
				CreatedAt:          now,
			},
			{
				ID:                 node.Generate(),
				OrgID:              orgID,
				Name:               demoOrgName + "-worker",
				BaseMonthlyPrice:   decimal.NewFromFloat(36.50),
				BackupMonthlyPrice: decimal.NewFromFloat(7.30),
				BackupConfig:       instancedomain.BackupWeekly,
				CreatedAt:          now,
			},
		}
		for i := range instances {
			if err := tx.Create(&instances[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
