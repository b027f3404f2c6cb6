package ledger

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryFaultInjection(t *testing.T) {
	m := NewMemory()
	boom := errors.New("network down")
	m.FailUpsert = func(call int) error {
		if call <= 2 {
			return &RemoteError{Op: "upsert", Table: TableStats, Err: boom}
		}
		return nil
	}

	ctx := context.Background()
	for i := 1; i <= 2; i++ {
		_, err := m.UpsertDaily(ctx, TableStats, "u", "", map[string]any{"streak": 1})
		if !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want injected failure", i, err)
		}
		if IsPermanent(err) {
			t.Errorf("call %d classified as permanent", i)
		}
	}

	if _, err := m.UpsertDaily(ctx, TableStats, "u", "", map[string]any{"streak": 1}); err != nil {
		t.Fatalf("third call error = %v", err)
	}
	if m.UpsertCalls() != 3 {
		t.Errorf("UpsertCalls() = %d, want 3", m.UpsertCalls())
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.UpsertDaily(ctx, TableMood, "u", "2026-03-14", map[string]any{"latest": "good"}); err != nil {
		t.Fatalf("UpsertDaily() error = %v", err)
	}

	rec, err := m.GetDaily(ctx, TableMood, "u", "2026-03-14")
	if err != nil {
		t.Fatalf("GetDaily() error = %v", err)
	}
	rec.Fields["latest"] = "awful"

	again, _ := m.GetDaily(ctx, TableMood, "u", "2026-03-14")
	if again.Fields["latest"] != "good" {
		t.Errorf("stored record mutated through returned copy: %v", again.Fields)
	}
}

func TestMemoryCancelledContextIsTransient(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.UpsertDaily(ctx, TableStats, "u", "", map[string]any{"streak": 1})
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("UpsertDaily() error = %v, want RemoteError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("UpsertDaily() error = %v, want context.Canceled", err)
	}
}
