// Package testdb opens throwaway in-memory sqlite databases for service
// tests, with the schema auto-migrated and postgres-only locking clauses
// stripped from raw SQL.
package testdb

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/skystack/fleetbill/internal/migration"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// Open returns a fresh database for one test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared", dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stripForUpdate(conn)

	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// stripForUpdate removes FOR UPDATE clauses before execution. sqlite has no
// row locks; its single-writer model gives the same isolation in tests.
func stripForUpdate(conn *gorm.DB) {
	rewrite := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	_ = conn.Callback().Query().Before("gorm:query").Register("sqlite_skip_for_update", rewrite)
	_ = conn.Callback().Row().Before("gorm:row").Register("sqlite_skip_for_update_row", rewrite)
	_ = conn.Callback().Raw().Before("gorm:raw").Register("sqlite_skip_for_update_raw", rewrite)
}
