package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	activitydomain "github.com/skystack/fleetbill/internal/activity/domain"
	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	daemonstatusdomain "github.com/skystack/fleetbill/internal/daemonstatus/domain"
	instancedomain "github.com/skystack/fleetbill/internal/instance/domain"
	ledgerdomain "github.com/skystack/fleetbill/internal/ledger/domain"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL migrations. Postgres only; the
// billing tables are created automatically on startup so a fresh deployment
// is usable out of the box.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate creates the schema through gorm. Used for sqlite, where the
// SQL migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&instancedomain.Instance{},
		&walletdomain.Wallet{},
		&ledgerdomain.WalletTransaction{},
		&billingcycledomain.BillingCycleRecord{},
		&daemonstatusdomain.DaemonStatus{},
		&activitydomain.ActivityEvent{},
	)
}
