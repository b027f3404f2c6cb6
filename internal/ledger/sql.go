package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default
	sqlx.BindDriver(constants.DriverSQLite, sqlx.QUESTION)
}

// SQLClient is a Client backed by a SQL database (PostgreSQL or SQLite)
type SQLClient struct {
	driver string
	db     *sqlx.DB
	now    func() time.Time
}

type row struct {
	UserID    string `db:"user_id"`
	Table     string `db:"tbl"`
	Day       string `db:"day"`
	Fields    string `db:"fields"`
	UpdatedAt string `db:"updated_at"`
}

// Open connects to the ledger database. driver is one of "postgres" (lib/pq),
// "pgx" or "sqlite".
func Open(driver, dsn string) (*SQLClient, error) {
	switch driver {
	case constants.DriverPostgres, constants.DriverPgx:
		dsn = EnsureSearchPath(dsn)
	case constants.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsnPath(dsn)), 0700); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		dsn = withBusyTimeout(dsn)
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	// Configure connection pool parameters to avoid connection exhaustion
	if driver == constants.DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLClient{driver: driver, db: db, now: time.Now}, nil
}

// Ping checks connectivity and hints at sslmode when the server has SSL disabled
func (c *SQLClient) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		if strings.Contains(err.Error(), "SSL is not enabled on the server") {
			return fmt.Errorf("failed to connect to ledger: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to ledger: %w", err)
	}
	return nil
}

// Migrate creates the application schema (PostgreSQL) and applies pending
// ledger schema migrations
func (c *SQLClient) Migrate(ctx context.Context) error {
	if c.driver != constants.DriverSQLite {
		if _, err := c.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+constants.AppName); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return RunMigrations(ctx, c.db.DB, c.driver)
}

// Close releases the connection pool
func (c *SQLClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Driver returns the configured driver name
func (c *SQLClient) Driver() string {
	return c.driver
}

func (c *SQLClient) UpsertDaily(ctx context.Context, table Table, userID, day string, fields map[string]any) (Record, error) {
	if err := validateKey(table, userID, day); err != nil {
		return Record{}, err
	}
	if err := validateFields(fields); err != nil {
		return Record{}, err
	}
	rowDay := table.RowDay(day)

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return Record{}, classify("upsert", table, err)
	}
	defer tx.Rollback()

	// Claim the row before reading it. Concurrent writers of other fields on
	// the same row queue here instead of merging against a stale copy: the
	// insert takes the sqlite write lock and FOR UPDATE takes the postgres
	// row lock.
	_, err = tx.ExecContext(ctx, c.db.Rebind(`
		INSERT INTO daily_records (user_id, tbl, day, fields, updated_at)
		VALUES (?, ?, ?, '{}', ?)
		ON CONFLICT (user_id, tbl, day) DO NOTHING`),
		userID, string(table), rowDay, c.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return Record{}, classify("upsert", table, err)
	}

	query := `SELECT user_id, tbl, day, fields, updated_at
		FROM daily_records WHERE user_id = ? AND tbl = ? AND day = ?`
	if c.driver != constants.DriverSQLite {
		query += " FOR UPDATE"
	}
	var existing row
	if err := tx.GetContext(ctx, &existing, c.db.Rebind(query), userID, string(table), rowDay); err != nil {
		return Record{}, classify("upsert", table, err)
	}

	var current map[string]any
	if err := json.Unmarshal([]byte(existing.Fields), &current); err != nil {
		logger.Warn("Discarding unreadable ledger row", "table", table, "user", userID, "day", rowDay, "error", err)
		current = nil
	}

	merged := merge(current, fields)
	encoded, err := json.Marshal(merged)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	updatedAt := c.now().UTC()
	_, err = tx.ExecContext(ctx, c.db.Rebind(`
		UPDATE daily_records SET fields = ?, updated_at = ?
		WHERE user_id = ? AND tbl = ? AND day = ?`),
		string(encoded), updatedAt.Format(time.RFC3339Nano), userID, string(table), rowDay)
	if err != nil {
		return Record{}, classify("upsert", table, err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, classify("upsert", table, err)
	}

	// Decode the stored form so callers see what a later GetDaily returns
	var stored map[string]any
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return Record{}, fmt.Errorf("failed to decode stored fields: %w", err)
	}

	return Record{
		Table:     table,
		UserID:    userID,
		Day:       rowDay,
		Fields:    stored,
		UpdatedAt: updatedAt,
	}, nil
}

func (c *SQLClient) GetDaily(ctx context.Context, table Table, userID, day string) (Record, error) {
	if err := validateKey(table, userID, day); err != nil {
		return Record{}, err
	}

	var r row
	err := c.db.GetContext(ctx, &r, c.db.Rebind(`
		SELECT user_id, tbl, day, fields, updated_at
		FROM daily_records WHERE user_id = ? AND tbl = ? AND day = ?`),
		userID, string(table), table.RowDay(day))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, classify("get", table, err)
	}

	rec := Record{Table: table, UserID: r.UserID, Day: r.Day}
	if err := json.Unmarshal([]byte(r.Fields), &rec.Fields); err != nil {
		return Record{}, fmt.Errorf("failed to parse fields for %s/%s: %w", table, r.Day, err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return rec, nil
}

// classify turns driver errors into ErrRejected (data or constraint errors)
// or a transient RemoteError
func classify(op string, table Table, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && permanentClass(string(pqErr.Code.Class())) {
		return fmt.Errorf("%w: %s (%s)", ErrRejected, pqErr.Message, pqErr.Code)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && permanentClass(pgErr.Code[:2]) {
		return fmt.Errorf("%w: %s (%s)", ErrRejected, pgErr.Message, pgErr.Code)
	}

	return &RemoteError{Op: op, Table: table, Err: err}
}

// permanentClass reports SQLSTATE classes that retrying cannot fix:
// 22 data exception, 23 integrity constraint violation, 42 syntax or access rule
func permanentClass(class string) bool {
	switch class {
	case "22", "23", "42":
		return true
	}
	return false
}

// dsnPath strips URI prefixes and query parameters from a sqlite DSN
func dsnPath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	return dsn
}

// withBusyTimeout makes a sqlite connection wait for another process's write
// lock instead of failing at once
func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// SchemaVersion reports the applied ledger schema version
func (c *SQLClient) SchemaVersion(ctx context.Context) (int64, error) {
	return SchemaVersion(ctx, c.db.DB, c.driver)
}
