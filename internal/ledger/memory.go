package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process Client with fault injection for tests and offline use
type Memory struct {
	mu      sync.Mutex
	rows    map[string]Record
	now     func() time.Time
	upserts int
	gets    int

	// FailUpsert, when set, is consulted before every upsert with the 1-based
	// call number; a non-nil return fails that call.
	FailUpsert func(call int) error
	// FailGet is the GetDaily counterpart of FailUpsert
	FailGet func(call int) error
}

// NewMemory returns an empty in-memory ledger
func NewMemory() *Memory {
	return &Memory{
		rows: make(map[string]Record),
		now:  time.Now,
	}
}

func memoryKey(table Table, userID, day string) string {
	return fmt.Sprintf("%s|%s|%s", table, userID, table.RowDay(day))
}

func (m *Memory) UpsertDaily(ctx context.Context, table Table, userID, day string, fields map[string]any) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.upserts++
	if m.FailUpsert != nil {
		if err := m.FailUpsert(m.upserts); err != nil {
			return Record{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Record{}, &RemoteError{Op: "upsert", Table: table, Err: err}
	}
	if err := validateKey(table, userID, day); err != nil {
		return Record{}, err
	}
	if err := validateFields(fields); err != nil {
		return Record{}, err
	}

	// Round-trip through JSON so stored values look like SQL-backed ones
	normalized, err := normalize(fields)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	key := memoryKey(table, userID, day)
	rec := m.rows[key]
	rec.Table = table
	rec.UserID = userID
	rec.Day = table.RowDay(day)
	rec.Fields = merge(rec.Fields, normalized)
	rec.UpdatedAt = m.now().UTC()
	m.rows[key] = rec

	return copyRecord(rec), nil
}

func (m *Memory) GetDaily(ctx context.Context, table Table, userID, day string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	if m.FailGet != nil {
		if err := m.FailGet(m.gets); err != nil {
			return Record{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Record{}, &RemoteError{Op: "get", Table: table, Err: err}
	}
	if err := validateKey(table, userID, day); err != nil {
		return Record{}, err
	}

	rec, ok := m.rows[memoryKey(table, userID, day)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// UpsertCalls returns how many upserts have been attempted
func (m *Memory) UpsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

// GetCalls returns how many reads have been attempted
func (m *Memory) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Len returns the number of stored rows
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func normalize(fields map[string]any) (map[string]any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyRecord(rec Record) Record {
	rec.Fields = merge(nil, rec.Fields)
	return rec
}
