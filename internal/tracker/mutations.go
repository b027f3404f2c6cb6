package tracker

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/streak"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

// ApplyDelta adds delta to a consumption counter. The new value is visible to
// readers as soon as ApplyDelta returns; the returned Write reports the remote
// outcome. A failed remote write never rolls the local value back.
func (e *Engine) ApplyDelta(ctx context.Context, kind models.CounterKind, delta float64) *pipeline.Write {
	entity := string(kind)
	if _, err := models.ParseCounterKind(entity); err != nil {
		return pipeline.Skipped(entity, err)
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return pipeline.Skipped(entity, fmt.Errorf("invalid %s delta %v", kind, delta))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return pipeline.Skipped(entity, ErrNoIdentity)
	}
	st, err := e.load(ns, userID)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}

	next := st.Counter(kind).Apply(delta)
	if err := ns.SetJSON(entity, next); err != nil {
		return pipeline.Skipped(entity, err)
	}
	logger.Debug("Counter updated", "counter", kind, "delta", delta, "consumed", next.Consumed)

	req, err := counterRequest(userID, st.activeDay(), kind, next)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}
	return e.pipeline.Submit(ctx, req)
}

// AddCalories records consumed kilocalories
func (e *Engine) AddCalories(ctx context.Context, kcal float64) *pipeline.Write {
	return e.ApplyDelta(ctx, models.CounterCalories, kcal)
}

// AddWater records consumed water in litres
func (e *Engine) AddWater(ctx context.Context, litres float64) *pipeline.Write {
	return e.ApplyDelta(ctx, models.CounterWater, litres)
}

// SetGoal changes a counter's daily goal; goals survive rollover
func (e *Engine) SetGoal(ctx context.Context, kind models.CounterKind, goal float64) *pipeline.Write {
	entity := string(kind)
	if _, err := models.ParseCounterKind(entity); err != nil {
		return pipeline.Skipped(entity, err)
	}
	if goal <= 0 || math.IsNaN(goal) || math.IsInf(goal, 0) {
		return pipeline.Skipped(entity, fmt.Errorf("%s goal must be positive, got %v", kind, goal))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return pipeline.Skipped(entity, ErrNoIdentity)
	}
	st, err := e.load(ns, userID)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}

	next := st.Counter(kind)
	next.Goal = goal
	if err := ns.SetJSON(entity, next); err != nil {
		return pipeline.Skipped(entity, err)
	}

	req, err := counterRequest(userID, st.activeDay(), kind, next)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}
	return e.pipeline.Submit(ctx, req)
}

// LogMood appends an immutable mood entry for today
func (e *Engine) LogMood(ctx context.Context, mood models.Mood) *pipeline.Write {
	entity := constants.KeyMood
	if _, err := models.ParseMood(string(mood)); err != nil {
		return pipeline.Skipped(entity, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return pipeline.Skipped(entity, ErrNoIdentity)
	}
	st, err := e.load(ns, userID)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}

	entry := models.MoodEntry{
		ID:        uuid.NewString(),
		Date:      st.Today,
		Value:     mood,
		CreatedAt: e.clock.Now().UTC(),
	}
	moods := pruneMoods(append(st.Moods, entry), st.Today)
	if err := ns.SetJSON(entity, moods); err != nil {
		return pipeline.Skipped(entity, err)
	}

	req, err := moodRequest(userID, st.Today, models.MoodsForDay(moods, st.Today))
	if err != nil {
		return pipeline.Skipped(entity, err)
	}
	return e.pipeline.Submit(ctx, req)
}

// pruneMoods drops local entries older than the retention window; the ledger
// keeps the full history
func pruneMoods(entries []models.MoodEntry, today string) []models.MoodEntry {
	cutoff, err := utils.AddDays(today, -constants.MoodRetentionDays)
	if err != nil {
		return entries
	}
	out := entries[:0:0]
	for _, m := range entries {
		if m.Date >= cutoff {
			out = append(out, m)
		}
	}
	return out
}

// IncrementStat adds amount to a stat. Logging a workout or a mental session
// raises today's completion flag; when that completes the pair the streak is
// credited for today right away.
func (e *Engine) IncrementStat(ctx context.Context, name models.StatName, amount int) *pipeline.Write {
	entity := constants.KeyStats
	if _, err := models.ParseStatName(string(name)); err != nil {
		return pipeline.Skipped(entity, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return pipeline.Skipped(entity, ErrNoIdentity)
	}
	st, err := e.load(ns, userID)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}

	day := st.activeDay()
	next, transitioned := st.Stats.Increment(name, amount)
	if transitioned && next.BothCompleted() {
		rec := streak.CompleteToday(st.Streak, day)
		next.Streak = rec.CurrentStreak
		if err := ns.SetJSON(constants.KeyStreak, rec); err != nil {
			return pipeline.Skipped(entity, err)
		}
		logger.Info("Daily goals completed", "day", day, "streak", rec.CurrentStreak)

		req, err := streakRequest(userID, day, rec)
		if err != nil {
			return pipeline.Skipped(entity, err)
		}
		e.pipeline.Submit(ctx, req)
	}

	if err := ns.SetJSON(entity, next); err != nil {
		return pipeline.Skipped(entity, err)
	}
	req, err := statsRequest(userID, day, next)
	if err != nil {
		return pipeline.Skipped(entity, err)
	}
	return e.pipeline.Submit(ctx, req)
}
