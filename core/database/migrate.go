package database

import (
	"embed"
	"fmt"

	"calendar-sync/core/logger"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies all pending migrations in migrations/.
func Migrate(db Database) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db.db, "migrations"); err != nil {
		logger.Error("Database:Migrate:Error", "error", err)
		return fmt.Errorf("goose up: %w", err)
	}
	logger.Info("Database:Migrate:Done")
	return nil
}
