package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

var (
	// ErrNotFound is returned by GetDaily when no row exists for the key
	ErrNotFound = errors.New("ledger record not found")
	// ErrRejected marks a permanent rejection; retrying the same payload cannot succeed
	ErrRejected = errors.New("ledger rejected payload")
)

// Table names one of the logical ledger tables
type Table string

const (
	TableConsumption Table = "consumption" // per day: calories and water counters
	TableStats       Table = "stats"       // single row per user
	TableStreak      Table = "streak"      // single row per user
	TableMood        Table = "mood"        // per day: mood entries
)

// Tables lists every logical table
var Tables = []Table{TableConsumption, TableStats, TableStreak, TableMood}

// PerDay reports whether rows of the table are keyed by calendar day.
// Single-row tables ignore the date argument.
func (t Table) PerDay() bool {
	return t == TableConsumption || t == TableMood
}

// Valid reports whether t is a known table
func (t Table) Valid() bool {
	for _, known := range Tables {
		if t == known {
			return true
		}
	}
	return false
}

// RowDay returns the day component of the row key for this table
func (t Table) RowDay(day string) string {
	if t.PerDay() {
		return day
	}
	return ""
}

// Record is one ledger row
type Record struct {
	Table     Table          `json:"table"`
	UserID    string         `json:"user_id"`
	Day       string         `json:"day"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Client is the remote durable store keyed by (table, user, day).
// UpsertDaily merges fields into the row and is idempotent: repeating a call
// with the same key and fields converges to one row. Reads may lag writes.
type Client interface {
	UpsertDaily(ctx context.Context, table Table, userID, day string, fields map[string]any) (Record, error)
	GetDaily(ctx context.Context, table Table, userID, day string) (Record, error)
}

// RemoteError wraps a transient failure talking to the ledger
type RemoteError struct {
	Op    string
	Table Table
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// IsPermanent reports whether err can never succeed on retry
func IsPermanent(err error) bool {
	return errors.Is(err, ErrRejected)
}

// validateKey checks the row key before any remote call is made
func validateKey(table Table, userID, day string) error {
	if !table.Valid() {
		return fmt.Errorf("%w: unknown table %q", ErrRejected, table)
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrRejected)
	}
	if table.PerDay() {
		if _, err := utils.ParseDay(day); err != nil {
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
	}
	return nil
}

// validateFields checks the upsert payload
func validateFields(fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty field set", ErrRejected)
	}
	for k := range fields {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrRejected)
		}
	}
	return nil
}

// merge copies update over base without modifying either
func merge(base, update map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}
