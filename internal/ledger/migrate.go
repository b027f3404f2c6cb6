package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/migrations"
)

// dialectMap maps database drivers to Goose dialect names
var dialectMap = map[string]string{
	"sqlite":   "sqlite3",
	"pgx":      "postgres",
	"postgres": "postgres",
}

// getDialect returns the Goose dialect for the given driver
func getDialect(driver string) string {
	dialect, ok := dialectMap[driver]
	if ok {
		return dialect
	}
	return driver // fallback to driver name
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf(format, v...))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Error(fmt.Sprintf(format, v...))
}

// setupGoose configures Goose with the correct dialect and filesystem
func setupGoose(driver string) error {
	if err := goose.SetDialect(getDialect(driver)); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	migrationsDir, err := fs.Sub(migrations.FS, "ledger")
	if err != nil {
		return fmt.Errorf("failed to get migrations directory: %w", err)
	}

	goose.SetBaseFS(migrationsDir)
	goose.SetLogger(gooseLogger{})
	return nil
}

// RunMigrations applies all pending ledger migrations
func RunMigrations(ctx context.Context, db *sql.DB, driver string) error {
	if err := setupGoose(driver); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to run ledger migrations: %w", err)
	}

	logger.Info("Ledger migrations completed", "driver", driver)
	return nil
}

// SchemaVersion reports the applied ledger schema version
func SchemaVersion(ctx context.Context, db *sql.DB, driver string) (int64, error) {
	if err := setupGoose(driver); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
