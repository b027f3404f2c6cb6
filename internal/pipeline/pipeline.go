// Package pipeline ships optimistic local changes to the remote ledger with
// bounded retry, dropping stale retries and recording failures in an outbox.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/identity"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
)

// ErrIdentityUnavailable is the transient failure seen when the user signs
// out (or switches) while a write is in flight
var ErrIdentityUnavailable = errors.New("identity unavailable")

// Request is the full state of one entity to upsert
type Request struct {
	UserID string
	Entity string // snapshot key name, e.g. "water" or "stats"
	Table  ledger.Table
	Day    string
	Fields map[string]any
}

func (r Request) key() string {
	return r.UserID + "|" + r.Entity + "|" + r.Table.RowDay(r.Day)
}

// rowKey names the ledger row; entities sharing a row share its lock
func (r Request) rowKey() string {
	return r.UserID + "|" + string(r.Table) + "|" + r.Table.RowDay(r.Day)
}

// rowLock serializes writes to one ledger row. refs counts the goroutines
// holding or waiting for it so idle rows can be dropped.
type rowLock struct {
	mu   sync.Mutex
	refs int
}

// Settled is called once per write with its final outcome. latest is false
// when a newer write of the same entity has been submitted since.
type Settled func(req Request, err error, latest bool)

// Pipeline runs remote writes on background goroutines
type Pipeline struct {
	client   ledger.Client
	policy   RetryPolicy
	identity identity.Provider
	settled  Settled

	mu     sync.Mutex
	latest map[string]uint64
	locks  map[string]*rowLock
	seq    uint64
	wg     sync.WaitGroup
}

// New builds a Pipeline. settled may be nil.
func New(client ledger.Client, policy RetryPolicy, id identity.Provider, settled Settled) *Pipeline {
	return &Pipeline{
		client:   client,
		policy:   policy,
		identity: id,
		settled:  settled,
		latest:   make(map[string]uint64),
		locks:    make(map[string]*rowLock),
	}
}

// Submit starts the remote write for req and returns immediately
func (p *Pipeline) Submit(ctx context.Context, req Request) *Write {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.latest[req.key()] = seq
	p.mu.Unlock()

	w := newWrite(uuid.NewString(), req.Entity, seq)

	// The remote write outlives the caller's request scope
	ctx = context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		attempts, err := p.run(ctx, req, seq)

		// A newer write of the entity settles under the same lock, so an
		// older outcome cannot land on the outbox after it
		unlock := p.lock(req)
		latest := p.isLatest(req, seq)
		if latest {
			p.forget(req, seq)
		}
		if p.settled != nil && !errors.Is(err, ErrSuperseded) {
			p.settled(req, err, latest)
		}
		unlock()

		w.finish(attempts, err)
	}()

	return w
}

// Push performs a synchronous write with the same retry policy, used by the
// reconciliation pass
func (p *Pipeline) Push(ctx context.Context, req Request) error {
	w := p.Submit(ctx, req)
	return w.Wait(ctx)
}

// Wait blocks until every submitted write has settled
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context, req Request, seq uint64) (int, error) {
	op := func(ctx context.Context, attempt int) error {
		// Holding the row lock across the check and the call keeps an older
		// state from landing after a newer one
		unlock := p.lock(req)
		defer unlock()

		if !p.isLatest(req, seq) {
			return Permanent(ErrSuperseded)
		}
		if id, ok := p.identity.UserID(); !ok || id != req.UserID {
			return ErrIdentityUnavailable
		}
		_, err := p.client.UpsertDaily(ctx, req.Table, req.UserID, req.Day, req.Fields)
		return err
	}

	notify := func(attempt int, err error, wait time.Duration) {
		logger.Warn("Remote write failed, retrying",
			"entity", req.Entity, "day", req.Day, "attempt", attempt+1, "wait", wait, "error", err)
	}

	attempts, err := p.policy.Retry(ctx, op, notify)
	switch {
	case err == nil:
		logger.Debug("Remote write synced", "entity", req.Entity, "day", req.Day, "attempts", attempts)
	case errors.Is(err, ErrSuperseded):
		logger.Debug("Remote write superseded", "entity", req.Entity, "day", req.Day)
	case IsPermanent(err):
		logger.Error("Remote write rejected", "entity", req.Entity, "day", req.Day, "error", err)
	default:
		logger.Warn("Remote write gave up", "entity", req.Entity, "day", req.Day, "attempts", attempts, "error", err)
	}
	if err != nil && !errors.Is(err, ErrSuperseded) {
		err = fmt.Errorf("sync %s: %w", req.Entity, err)
	}
	return attempts, err
}

// lock takes the row lock for req and returns its release
func (p *Pipeline) lock(req Request) func() {
	key := req.rowKey()

	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &rowLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}

func (p *Pipeline) isLatest(req Request, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest[req.key()] == seq
}

func (p *Pipeline) forget(req Request, seq uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest[req.key()] == seq {
		delete(p.latest, req.key())
	}
}
