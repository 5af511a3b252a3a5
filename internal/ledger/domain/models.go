package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionDirection represents debit or credit postings against a wallet.
type TransactionDirection string

const (
	TransactionDirectionDebit  TransactionDirection = "debit"
	TransactionDirectionCredit TransactionDirection = "credit"
)

type TransactionSourceType string

const (
	// SourceTypeBillingCycle marks hourly usage charges. Debits with this
	// source are written only by the billing executor.
	SourceTypeBillingCycle TransactionSourceType = "billing_cycle"

	// SourceTypePayment marks wallet top-ups from payment capture.
	SourceTypePayment TransactionSourceType = "payment"
)

// WalletTransaction is the immutable record of a single wallet movement.
type WalletTransaction struct {
	ID         snowflake.ID          `gorm:"primaryKey"`
	OrgID      snowflake.ID          `gorm:"not null;index"`
	WalletID   snowflake.ID          `gorm:"not null;index"`
	Direction  TransactionDirection  `gorm:"type:text;not null"`
	SourceType TransactionSourceType `gorm:"type:text;not null;index"`
	SourceID   snowflake.ID          `gorm:"index"`
	Amount     decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Currency   string                `gorm:"type:text;not null"`
	OccurredAt time.Time             `gorm:"not null"`
	CreatedAt  time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (WalletTransaction) TableName() string { return "wallet_transactions" }
