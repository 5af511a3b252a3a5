package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/skystack/fleetbill/internal/clock"
	ledgerdomain "github.com/skystack/fleetbill/internal/ledger/domain"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) walletdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("wallet.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Credit adds funds and records the matching credit transaction atomically.
func (s *Service) Credit(ctx context.Context, orgID snowflake.ID, amount decimal.Decimal) (walletdomain.Wallet, error) {
	if !amount.IsPositive() {
		return walletdomain.Wallet{}, walletdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var credited walletdomain.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet walletdomain.Wallet
		err := tx.WithContext(ctx).Raw(
			`SELECT id, org_id, balance, currency
			 FROM wallets
			 WHERE org_id = ?
			 FOR UPDATE`,
			orgID,
		).Scan(&wallet).Error
		if err != nil {
			return err
		}
		if wallet.ID == 0 {
			return walletdomain.ErrWalletNotFound
		}

		newBalance := wallet.Balance.Add(amount)
		if err := tx.Exec(
			`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
			newBalance, now, wallet.ID,
		).Error; err != nil {
			return err
		}

		txn := ledgerdomain.WalletTransaction{
			ID:         s.genID.Generate(),
			OrgID:      orgID,
			WalletID:   wallet.ID,
			Direction:  ledgerdomain.TransactionDirectionCredit,
			SourceType: ledgerdomain.SourceTypePayment,
			Amount:     amount,
			Currency:   wallet.Currency,
			OccurredAt: now,
			CreatedAt:  now,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		wallet.Balance = newBalance
		credited = wallet
		return nil
	})
	if err != nil {
		return walletdomain.Wallet{}, err
	}

	s.log.Info("wallet credited",
		zap.String("org_id", orgID.String()),
		zap.String("amount", amount.String()),
	)
	return credited, nil
}

func (s *Service) GetByOrg(ctx context.Context, orgID snowflake.ID) (walletdomain.Wallet, error) {
	var wallet walletdomain.Wallet
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, org_id, balance, currency, created_at, updated_at
		 FROM wallets
		 WHERE org_id = ?`,
		orgID,
	).Scan(&wallet).Error
	if err != nil {
		return walletdomain.Wallet{}, err
	}
	if wallet.ID == 0 {
		return walletdomain.Wallet{}, walletdomain.ErrWalletNotFound
	}
	return wallet, nil
}
