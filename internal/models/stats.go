package models

import (
	"fmt"
	"strings"
)

// StatName is the closed set of counters kept in DailyStats
type StatName string

const (
	StatWorkouts       StatName = "workouts"
	StatMinutes        StatName = "minutes"
	StatMentalSessions StatName = "mentalSessions"
	StatPRsThisMonth   StatName = "prsThisMonth"
)

// StatNames lists every stat in a stable order
var StatNames = []StatName{StatWorkouts, StatMinutes, StatMentalSessions, StatPRsThisMonth}

// ParseStatName converts a user supplied name into a StatName.
// Matching ignores case and accepts snake_case spellings.
func ParseStatName(s string) (StatName, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for _, name := range StatNames {
		if strings.ToLower(string(name)) == norm {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown stat %q", s)
}

// DailyStats holds the running totals and today's completion flags for a user
type DailyStats struct {
	WorkoutsTotal         int    `json:"workouts_total"`
	MinutesTotal          int    `json:"minutes_total"`
	MentalSessionsTotal   int    `json:"mental_sessions_total"`
	PRsThisMonth          int    `json:"prs_this_month"`
	Streak                int    `json:"streak"`
	TodayWorkoutCompleted bool   `json:"today_workout_completed"`
	TodayMentalCompleted  bool   `json:"today_mental_completed"`
	LastResetDate         string `json:"last_reset_date"` // YYYY-MM-DD format, empty before first activity
}

// Value returns the total for the named stat
func (s DailyStats) Value(name StatName) int {
	switch name {
	case StatWorkouts:
		return s.WorkoutsTotal
	case StatMinutes:
		return s.MinutesTotal
	case StatMentalSessions:
		return s.MentalSessionsTotal
	case StatPRsThisMonth:
		return s.PRsThisMonth
	}
	return 0
}

// Increment returns a copy with amount added to the named stat. Workouts and
// mental sessions also raise today's completion flag. The second return value
// reports whether that flag went from false to true.
func (s DailyStats) Increment(name StatName, amount int) (DailyStats, bool) {
	transitioned := false
	switch name {
	case StatWorkouts:
		s.WorkoutsTotal = clampAdd(s.WorkoutsTotal, amount)
		if amount > 0 && !s.TodayWorkoutCompleted {
			s.TodayWorkoutCompleted = true
			transitioned = true
		}
	case StatMinutes:
		s.MinutesTotal = clampAdd(s.MinutesTotal, amount)
	case StatMentalSessions:
		s.MentalSessionsTotal = clampAdd(s.MentalSessionsTotal, amount)
		if amount > 0 && !s.TodayMentalCompleted {
			s.TodayMentalCompleted = true
			transitioned = true
		}
	case StatPRsThisMonth:
		s.PRsThisMonth = clampAdd(s.PRsThisMonth, amount)
	}
	return s, transitioned
}

// BothCompleted reports whether both daily completion signals are set
func (s DailyStats) BothCompleted() bool {
	return s.TodayWorkoutCompleted && s.TodayMentalCompleted
}

func clampAdd(v, delta int) int {
	v += delta
	if v < 0 {
		return 0
	}
	return v
}
