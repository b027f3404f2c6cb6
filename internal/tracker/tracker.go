// Package tracker is the local-first daily activity engine. Every operation
// updates the local snapshot synchronously and ships the new entity state to
// the remote ledger in the background.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/identity"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/ledger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/snapshot"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

// ErrNoIdentity is the status of operations attempted while nobody is signed in
var ErrNoIdentity = errors.New("no signed-in user")

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	Clock    utils.Clock
	Location *time.Location
	Policy   pipeline.RetryPolicy
}

// Engine owns one user's daily counters at a time. A single mutex serializes
// every logical update; remote writes run on their own goroutines.
type Engine struct {
	mu       sync.Mutex
	store    *snapshot.Store
	client   ledger.Client
	identity identity.Provider
	clock    utils.Clock
	loc      *time.Location
	policy   pipeline.RetryPolicy
	pipeline *pipeline.Pipeline
	outbox   *pipeline.Outbox

	userID string
}

// New builds an Engine over a snapshot store and a ledger client
func New(store *snapshot.Store, client ledger.Client, id identity.Provider, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Policy.MaxRetries == 0 {
		opts.Policy = pipeline.DefaultPolicy()
	}

	outbox := pipeline.NewOutbox(store, opts.Clock.Now)
	return &Engine{
		store:    store,
		client:   client,
		identity: id,
		clock:    opts.Clock,
		loc:      opts.Location,
		policy:   opts.Policy,
		pipeline: pipeline.New(client, opts.Policy, id, outbox.Settle),
		outbox:   outbox,
	}
}

// State is a point-in-time copy of everything the engine tracks for a user
type State struct {
	UserID   string
	Today    string
	Calories models.ConsumptionCounter
	Water    models.ConsumptionCounter
	Stats    models.DailyStats
	Streak   models.StreakRecord
	Moods    []models.MoodEntry
}

// Counter returns the given counter kind
func (s State) Counter(kind models.CounterKind) models.ConsumptionCounter {
	if kind == models.CounterWater {
		return s.Water
	}
	return s.Calories
}

// Today returns the current calendar day in the engine's timezone
func (e *Engine) Today() string {
	return utils.Today(e.clock, e.loc)
}

// Drain blocks until every outstanding remote write has settled
func (e *Engine) Drain() {
	e.pipeline.Wait()
}

// user resolves the signed-in user and switches the engine to that user's
// snapshot namespace when it changed. Callers hold e.mu.
func (e *Engine) user() (snapshot.Namespace, string, bool) {
	userID, ok := e.identity.UserID()
	if !ok {
		return snapshot.Namespace{}, "", false
	}
	if userID != e.userID {
		if e.userID != "" {
			logger.Info("Active user changed, reloading state", "from", e.userID, "to", userID)
		}
		e.userID = userID
	}
	return e.store.ForUser(userID), userID, true
}

func (e *Engine) load(ns snapshot.Namespace, userID string) (State, error) {
	st := State{UserID: userID, Today: e.Today()}
	var err error
	if st.Calories, err = loadCounter(ns, models.CounterCalories); err != nil {
		return st, err
	}
	if st.Water, err = loadCounter(ns, models.CounterWater); err != nil {
		return st, err
	}
	if _, err = ns.GetJSON(constants.KeyStats, &st.Stats); err != nil {
		return st, err
	}
	if _, err = ns.GetJSON(constants.KeyStreak, &st.Streak); err != nil {
		return st, err
	}
	if _, err = ns.GetJSON(constants.KeyMood, &st.Moods); err != nil {
		return st, err
	}
	return st, nil
}

func loadCounter(ns snapshot.Namespace, kind models.CounterKind) (models.ConsumptionCounter, error) {
	c := models.DefaultCounter(kind)
	if _, err := ns.GetJSON(string(kind), &c); err != nil {
		return c, err
	}
	if c.Goal <= 0 {
		c.Goal = models.DefaultCounter(kind).Goal
	}
	return c, nil
}

// activeDay is the day the current counters belong to
func (s State) activeDay() string {
	if s.Stats.LastResetDate != "" {
		return s.Stats.LastResetDate
	}
	return s.Today
}

// Snapshot returns the signed-in user's state
func (e *Engine) Snapshot() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return State{}, ErrNoIdentity
	}
	return e.load(ns, userID)
}

// Counter returns one consumption counter
func (e *Engine) Counter(kind models.CounterKind) (models.ConsumptionCounter, error) {
	st, err := e.Snapshot()
	if err != nil {
		return models.ConsumptionCounter{}, err
	}
	return st.Counter(kind), nil
}

// Stats returns the daily stats
func (e *Engine) Stats() (models.DailyStats, error) {
	st, err := e.Snapshot()
	return st.Stats, err
}

// Streak returns the streak record
func (e *Engine) Streak() (models.StreakRecord, error) {
	st, err := e.Snapshot()
	return st.Streak, err
}

// Moods returns the mood entries logged on day; an empty day means today
func (e *Engine) Moods(day string) ([]models.MoodEntry, error) {
	st, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	if day == "" {
		day = st.Today
	}
	return models.MoodsForDay(st.Moods, day), nil
}

// Pending lists the signed-in user's writes that have not reached the ledger
func (e *Engine) Pending() ([]pipeline.OutboxEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, userID, ok := e.user()
	if !ok {
		return nil, ErrNoIdentity
	}
	return e.outbox.Pending(userID), nil
}

// requests builds the full-state writes for every entity of st
func requests(st State) ([]pipeline.Request, error) {
	day := st.activeDay()
	var out []pipeline.Request
	for _, kind := range models.CounterKinds {
		req, err := counterRequest(st.UserID, day, kind, st.Counter(kind))
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	req, err := statsRequest(st.UserID, day, st.Stats)
	if err != nil {
		return nil, err
	}
	out = append(out, req)
	if req, err = streakRequest(st.UserID, day, st.Streak); err != nil {
		return nil, err
	}
	out = append(out, req)
	if today := models.MoodsForDay(st.Moods, st.Today); len(today) > 0 {
		if req, err = moodRequest(st.UserID, st.Today, today); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func counterRequest(userID, day string, kind models.CounterKind, c models.ConsumptionCounter) (pipeline.Request, error) {
	fields, err := models.ToFields(c)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		UserID: userID,
		Entity: string(kind),
		Table:  ledger.TableConsumption,
		Day:    day,
		Fields: map[string]any{string(kind): fields},
	}, nil
}

func statsRequest(userID, day string, s models.DailyStats) (pipeline.Request, error) {
	fields, err := models.ToFields(s)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{UserID: userID, Entity: constants.KeyStats, Table: ledger.TableStats, Day: day, Fields: fields}, nil
}

func streakRequest(userID, day string, r models.StreakRecord) (pipeline.Request, error) {
	fields, err := models.ToFields(r)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{UserID: userID, Entity: constants.KeyStreak, Table: ledger.TableStreak, Day: day, Fields: fields}, nil
}

type moodRow struct {
	Entries []models.MoodEntry `json:"entries"`
}

func moodRequest(userID, day string, entries []models.MoodEntry) (pipeline.Request, error) {
	fields, err := models.ToFields(moodRow{Entries: entries})
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{UserID: userID, Entity: constants.KeyMood, Table: ledger.TableMood, Day: day, Fields: fields}, nil
}

func entityKey(req pipeline.Request) string {
	return fmt.Sprintf("%s|%s", req.Entity, req.Table.RowDay(req.Day))
}
