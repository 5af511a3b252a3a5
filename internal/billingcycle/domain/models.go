package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BillingCycleStatus is the outcome of one attempted charge.
type BillingCycleStatus string

const (
	BillingCycleStatusBilled BillingCycleStatus = "billed"
	BillingCycleStatusFailed BillingCycleStatus = "failed"
)

// BillingCycleRecord is the audit trail of one attempted charge, written for
// failed attempts as well as successful ones. A period that already has a
// billed record is never re-charged.
type BillingCycleRecord struct {
	ID            snowflake.ID       `gorm:"primaryKey"`
	InstanceID    snowflake.ID       `gorm:"not null;index"`
	OrgID         snowflake.ID       `gorm:"not null;index"`
	PeriodStart   time.Time          `gorm:"not null"`
	PeriodEnd     time.Time          `gorm:"not null"`
	HourlyRate    decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Amount        decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Status        BillingCycleStatus `gorm:"type:text;not null;index"`
	TransactionID *snowflake.ID      `gorm:"index"`
	Metadata      datatypes.JSONMap  `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt     time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BillingCycleRecord) TableName() string { return "billing_cycle_records" }
