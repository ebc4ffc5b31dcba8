// Package migrations holds the embedded goose migrations for each supported driver.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql postgres/*.sql
var FS embed.FS

// Up applies all pending migrations for driver ("mysql" or "postgres").
func Up(db *sql.DB, driver string, logger goose.Logger) error {
	if driver != "mysql" && driver != "postgres" {
		return fmt.Errorf("no migrations for driver %q", driver)
	}
	goose.SetBaseFS(FS)
	if logger != nil {
		goose.SetLogger(logger)
	}
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, driver); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
