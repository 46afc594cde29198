package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// PushSubscriptionIndexDDL is the unique index migration 00001 builds after
// removing duplicate registrations. The gorm model leaves it out so AutoMigrate
// never trips over legacy duplicates.
const PushSubscriptionIndexDDL = "CREATE UNIQUE INDEX IF NOT EXISTS idx_push_user_endpoint ON push_subscriptions (user_id, endpoint)"

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the SQL migrations that sit on top of the gorm-managed tables:
// subscription de-duplication and the notification insert trigger.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
