package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// BackupConfig is the backup plan attached to an instance.
type BackupConfig string

const (
	BackupNone   BackupConfig = "none"
	BackupDaily  BackupConfig = "daily"
	BackupWeekly BackupConfig = "weekly"
)

func (b BackupConfig) Valid() bool {
	switch b {
	case BackupNone, BackupDaily, BackupWeekly:
		return true
	}
	return false
}

// Instance is a provisioned compute instance subject to hourly charges.
// Pricing fields are a monthly-price snapshot taken at provisioning time;
// the provisioning subsystem owns every column except LastBilledAt, which is
// advanced only by the billing executor after a successful charge.
type Instance struct {
	ID    snowflake.ID `gorm:"primaryKey"`
	OrgID snowflake.ID `gorm:"not null;index"`
	Name  string       `gorm:"type:text;not null"`

	BaseMonthlyPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	MarkupMonthlyPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BackupMonthlyPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BackupMarkupPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BackupConfig       BackupConfig    `gorm:"type:text;not null;default:'none'"`

	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"`
	LastBilledAt *time.Time `gorm:"index"`
}

// TableName sets the database table name.
func (Instance) TableName() string { return "instances" }

// BillingAnchor is the point the next charge window starts from.
func (i Instance) BillingAnchor() time.Time {
	if i.LastBilledAt != nil {
		return *i.LastBilledAt
	}
	return i.CreatedAt
}
