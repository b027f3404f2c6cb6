package tracker

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
)

// ReconcileResult counts what a reconciliation pass did
type ReconcileResult struct {
	Checked int
	InSync  int
	Pushed  int
	Failed  int
}

// Reconcile compares the local state of every entity (and every outboxed
// write) with the ledger and re-pushes whatever differs
func (e *Engine) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	e.mu.Lock()
	ns, userID, ok := e.user()
	if !ok {
		e.mu.Unlock()
		return res, ErrNoIdentity
	}
	st, err := e.load(ns, userID)
	if err != nil {
		e.mu.Unlock()
		return res, err
	}
	reqs, err := requests(st)
	if err != nil {
		e.mu.Unlock()
		return res, err
	}
	pending := e.outbox.Pending(userID)
	e.mu.Unlock()

	current := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		current[entityKey(req)] = true
	}
	for _, entry := range pending {
		req := entry.Request(userID)
		if current[entityKey(req)] {
			continue
		}
		if entry.Permanent {
			logger.Warn("Skipping rejected write", "entity", entry.Entity, "day", entry.Day, "error", entry.LastError)
			continue
		}
		reqs = append(reqs, req)
	}

	var errs []error
	for _, req := range reqs {
		res.Checked++
		synced, err := e.inSync(ctx, req)
		if err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		if synced {
			res.InSync++
			e.outbox.Clear(req)
			continue
		}

		w := e.resubmit(ctx, req)
		if err := w.Wait(ctx); err != nil {
			res.Failed++
			errs = append(errs, err)
			continue
		}
		res.Pushed++
	}

	if res.Pushed > 0 || res.Failed > 0 {
		logger.Info("Reconciled with ledger", "checked", res.Checked, "pushed", res.Pushed, "failed", res.Failed)
	}
	return res, errors.Join(errs...)
}

// inSync reports whether the ledger row already holds req's fields
func (e *Engine) inSync(ctx context.Context, req pipeline.Request) (bool, error) {
	ctx, cancel := e.remoteContext(ctx)
	defer cancel()

	rec, err := e.client.GetDaily(ctx, req.Table, req.UserID, req.Day)
	if errors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", req.Entity, err)
	}
	for k, v := range req.Fields {
		if !reflect.DeepEqual(rec.Fields[k], v) {
			return false, nil
		}
	}
	return true, nil
}

// resubmit pushes the freshest local state for req's entity. A mutation that
// ran since the diff must not be overwritten by the older copy.
func (e *Engine) resubmit(ctx context.Context, req pipeline.Request) *pipeline.Write {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ns, userID, ok := e.user(); ok && userID == req.UserID {
		if st, err := e.load(ns, userID); err == nil {
			if fresh, err := requests(st); err == nil {
				for _, r := range fresh {
					if entityKey(r) == entityKey(req) {
						req = r
						break
					}
				}
			}
		}
	}
	return e.pipeline.Submit(ctx, req)
}

func (e *Engine) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.policy.Timeout > 0 {
		return context.WithTimeout(ctx, e.policy.Timeout)
	}
	return context.WithCancel(ctx)
}

// Hydrate adopts ledger state for every entity missing from the local
// snapshot, which is the case on a fresh install. Local values always win.
// It returns how many entities were adopted and is meant to run before the
// scheduler starts.
func (e *Engine) Hydrate(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return 0, ErrNoIdentity
	}

	fetch := func(table ledger.Table, day string) (map[string]any, bool, error) {
		ctx, cancel := e.remoteContext(ctx)
		defer cancel()
		rec, err := e.client.GetDaily(ctx, table, userID, day)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("hydrate %s: %w", table, err)
		}
		return rec.Fields, true, nil
	}
	missing := func(key string) bool {
		_, ok := e.store.Get(ns.Key(key))
		return !ok
	}

	adopted := 0
	adopt := func(key string, fields map[string]any, v any) error {
		if err := models.FromFields(fields, v); err != nil {
			return err
		}
		if err := ns.SetJSON(key, v); err != nil {
			return err
		}
		adopted++
		return nil
	}

	if missing(constants.KeyStats) {
		fields, found, err := fetch(ledger.TableStats, "")
		if err != nil {
			return adopted, err
		}
		if found {
			var stats models.DailyStats
			if err := adopt(constants.KeyStats, fields, &stats); err != nil {
				return adopted, err
			}
		}
	}
	if missing(constants.KeyStreak) {
		fields, found, err := fetch(ledger.TableStreak, "")
		if err != nil {
			return adopted, err
		}
		if found {
			var rec models.StreakRecord
			if err := adopt(constants.KeyStreak, fields, &rec); err != nil {
				return adopted, err
			}
		}
	}

	st, err := e.load(ns, userID)
	if err != nil {
		return adopted, err
	}

	day := st.activeDay()
	var consumption map[string]any
	var consumptionFetched bool
	for _, kind := range models.CounterKinds {
		if !missing(string(kind)) {
			continue
		}
		if !consumptionFetched {
			if consumption, _, err = fetch(ledger.TableConsumption, day); err != nil {
				return adopted, err
			}
			consumptionFetched = true
		}
		raw, ok := consumption[string(kind)].(map[string]any)
		if !ok {
			continue
		}
		c := models.DefaultCounter(kind)
		if err := adopt(string(kind), raw, &c); err != nil {
			return adopted, err
		}
	}

	if len(models.MoodsForDay(st.Moods, st.Today)) == 0 {
		fields, found, err := fetch(ledger.TableMood, st.Today)
		if err != nil {
			return adopted, err
		}
		if found {
			var row moodRow
			if err := models.FromFields(fields, &row); err != nil {
				return adopted, err
			}
			if len(row.Entries) > 0 {
				moods := append(st.Moods, row.Entries...)
				if err := ns.SetJSON(constants.KeyMood, moods); err != nil {
					return adopted, err
				}
				adopted++
			}
		}
	}

	if adopted > 0 {
		logger.Info("Hydrated local state from ledger", "user", userID, "entities", adopted)
	}
	return adopted, nil
}
