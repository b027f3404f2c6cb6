package tracker

import (
	"context"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/streak"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/utils"
)

// RolloverResult describes what a Rollover call did
type RolloverResult struct {
	From   string // lastResetDate before the call
	To     string // today
	Rolled bool   // lastResetDate moved
	Gap    bool   // whole days passed without a rollover
	Streak models.StreakRecord
	Writes []*pipeline.Write
}

// Rollover resets the day when lastResetDate is behind today. Calling it again
// on the same day is a no-op. The streak is evaluated against the flags of the
// day that just ended; counters are zeroed and goals kept.
func (e *Engine) Rollover(ctx context.Context) (RolloverResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ns, userID, ok := e.user()
	if !ok {
		return RolloverResult{}, ErrNoIdentity
	}
	st, err := e.load(ns, userID)
	if err != nil {
		return RolloverResult{}, err
	}

	today := st.Today
	from := st.Stats.LastResetDate
	res := RolloverResult{From: from, To: today, Streak: st.Streak}

	switch {
	case from == today:
		return res, nil
	case from > today:
		logger.Warn("Clock is behind the last reset date, skipping rollover", "last_reset", from, "today", today)
		return res, nil
	case from == "":
		// First activity: start tracking today without judging a previous day
		stats := st.Stats
		stats.LastResetDate = today
		if err := ns.SetJSON(constants.KeyStats, stats); err != nil {
			return res, err
		}
		req, err := statsRequest(userID, today, stats)
		if err != nil {
			return res, err
		}
		res.Rolled = true
		res.Writes = append(res.Writes, e.pipeline.Submit(ctx, req))
		logger.Info("Started daily tracking", "day", today)
		return res, nil
	}

	yesterday, err := utils.PreviousDay(today)
	if err != nil {
		return res, err
	}

	var rec models.StreakRecord
	if from == yesterday {
		rec = streak.Compute(st.Streak, yesterday, st.Stats.TodayWorkoutCompleted, st.Stats.TodayMentalCompleted)
	} else {
		rec = streak.Break(st.Streak)
		res.Gap = true
	}

	stats := st.Stats
	stats.TodayWorkoutCompleted = false
	stats.TodayMentalCompleted = false
	stats.Streak = rec.CurrentStreak
	if !utils.SameMonth(from, today) {
		stats.PRsThisMonth = 0
	}
	stats.LastResetDate = today

	// Stats carries lastResetDate and is written last so an interrupted
	// rollover runs again; Compute does not credit the same day twice
	if err := ns.SetJSON(constants.KeyStreak, rec); err != nil {
		return res, err
	}
	var reqs []pipeline.Request
	for _, kind := range models.CounterKinds {
		c := st.Counter(kind).Reset()
		if err := ns.SetJSON(string(kind), c); err != nil {
			return res, err
		}
		req, err := counterRequest(userID, today, kind, c)
		if err != nil {
			return res, err
		}
		reqs = append(reqs, req)
	}
	if err := ns.SetJSON(constants.KeyStats, stats); err != nil {
		return res, err
	}

	streakReq, err := streakRequest(userID, today, rec)
	if err != nil {
		return res, err
	}
	statsReq, err := statsRequest(userID, today, stats)
	if err != nil {
		return res, err
	}
	reqs = append([]pipeline.Request{streakReq, statsReq}, reqs...)
	for _, req := range reqs {
		res.Writes = append(res.Writes, e.pipeline.Submit(ctx, req))
	}

	res.Rolled = true
	res.Streak = rec
	logger.Info("Rolled over day", "from", from, "to", today, "streak", rec.CurrentStreak, "longest", rec.LongestStreak, "gap", res.Gap)
	return res, nil
}
