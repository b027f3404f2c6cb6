package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/snapshot"
)

// OutboxEntry is an entity whose latest state has not reached the ledger
type OutboxEntry struct {
	Entity    string         `json:"entity"`
	Table     ledger.Table   `json:"table"`
	Day       string         `json:"day"`
	Fields    map[string]any `json:"fields"`
	FailedAt  time.Time      `json:"failed_at"`
	Failures  int            `json:"failures"`
	LastError string         `json:"last_error"`
	Permanent bool           `json:"permanent"`
}

// Request rebuilds the write the entry stands for
func (e OutboxEntry) Request(userID string) Request {
	return Request{UserID: userID, Entity: e.Entity, Table: e.Table, Day: e.Day, Fields: e.Fields}
}

func (e OutboxEntry) key() string {
	return e.Entity + "|" + e.Table.RowDay(e.Day)
}

// Outbox persists failed writes in each user's snapshot namespace so a
// reconciliation pass can re-push them after a restart
type Outbox struct {
	mu    sync.Mutex
	store *snapshot.Store
	now   func() time.Time
}

func NewOutbox(store *snapshot.Store, now func() time.Time) *Outbox {
	if now == nil {
		now = time.Now
	}
	return &Outbox{store: store, now: now}
}

// Settle is a Settled callback: the latest write of an entity either clears
// its entry or records the failure
func (o *Outbox) Settle(req Request, err error, latest bool) {
	if !latest {
		return
	}
	if err == nil {
		o.Clear(req)
		return
	}
	o.Record(req, err)
}

// Record stores req as pending
func (o *Outbox) Record(req Request, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := o.load(req.UserID)
	entry := OutboxEntry{
		Entity: req.Entity,
		Table:  req.Table,
		Day:    req.Table.RowDay(req.Day),
		Fields: req.Fields,
	}
	if prev, ok := entries[entry.key()]; ok {
		entry.Failures = prev.Failures
	}
	entry.Failures++
	entry.FailedAt = o.now().UTC()
	entry.Permanent = IsPermanent(err)
	if err != nil {
		entry.LastError = err.Error()
	}
	entries[entry.key()] = entry
	o.save(req.UserID, entries)
}

// Clear drops the entry for req's entity and row
func (o *Outbox) Clear(req Request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := o.load(req.UserID)
	key := OutboxEntry{Entity: req.Entity, Table: req.Table, Day: req.Day}.key()
	if _, ok := entries[key]; !ok {
		return
	}
	delete(entries, key)
	o.save(req.UserID, entries)
}

// Pending lists the user's unsynced entries ordered by day then entity
func (o *Outbox) Pending(userID string) []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := o.load(userID)
	out := make([]OutboxEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

func (o *Outbox) load(userID string) map[string]OutboxEntry {
	var list []OutboxEntry
	if _, err := o.store.ForUser(userID).GetJSON(constants.KeyOutbox, &list); err != nil {
		logger.Warn("Discarding unreadable outbox", "user", userID, "error", err)
	}
	entries := make(map[string]OutboxEntry, len(list))
	for _, e := range list {
		entries[e.key()] = e
	}
	return entries
}

func (o *Outbox) save(userID string, entries map[string]OutboxEntry) {
	list := make([]OutboxEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].key() < list[j].key() })
	if err := o.store.ForUser(userID).SetJSON(constants.KeyOutbox, list); err != nil {
		logger.Error("Failed to persist outbox", "user", userID, "error", err)
	}
}
