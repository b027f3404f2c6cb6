package models

// StreakRecord tracks consecutive days with both a workout and a mental session
type StreakRecord struct {
	CurrentStreak     int     `json:"current_streak"`
	LongestStreak     int     `json:"longest_streak"`
	LastCompletedDate *string `json:"last_completed_date"` // YYYY-MM-DD format, nil after a break
}

// CompletedOn reports whether the record was last credited on day
func (r StreakRecord) CompletedOn(day string) bool {
	return r.LastCompletedDate != nil && *r.LastCompletedDate == day
}
