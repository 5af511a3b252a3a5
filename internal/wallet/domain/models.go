package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Wallet holds an organization's prepaid balance. Any component may credit a
// wallet; only the billing executor debits it.
type Wallet struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	OrgID     snowflake.ID    `gorm:"not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Currency  string          `gorm:"type:text;not null;default:'USD'"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Wallet) TableName() string { return "wallets" }

var (
	ErrWalletNotFound = errors.New("wallet_not_found")
	ErrInvalidAmount  = errors.New("invalid_amount")
)

type Service interface {
	// Credit adds funds to the organization's wallet and records a credit
	// transaction. Stand-in for the external payment-capture flow.
	Credit(ctx context.Context, orgID snowflake.ID, amount decimal.Decimal) (Wallet, error)
	GetByOrg(ctx context.Context, orgID snowflake.ID) (Wallet, error)
}
