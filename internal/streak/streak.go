// Package streak derives the workout + mental-session streak from the two
// daily completion flags. Every function here is pure.
package streak

import "github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"

// Compute evaluates the day that just ended. When both flags were set the
// streak extends by one (unless the same-day check already credited that
// day); otherwise it resets to zero. LongestStreak never decreases.
func Compute(prev models.StreakRecord, yesterday string, workoutDone, mentalDone bool) models.StreakRecord {
	prev = normalize(prev)

	if !workoutDone || !mentalDone {
		return models.StreakRecord{
			CurrentStreak:     0,
			LongestStreak:     prev.LongestStreak,
			LastCompletedDate: nil,
		}
	}

	if prev.CompletedOn(yesterday) {
		return prev
	}
	return credit(prev, yesterday)
}

// CompleteToday credits today as soon as both flags are set, so the streak
// shown during the day already includes it. Crediting the same day twice is
// a no-op.
func CompleteToday(prev models.StreakRecord, today string) models.StreakRecord {
	prev = normalize(prev)
	if prev.CompletedOn(today) {
		return prev
	}
	return credit(prev, today)
}

// Break resets the current streak, used when one or more whole days passed
// without a rollover
func Break(prev models.StreakRecord) models.StreakRecord {
	prev = normalize(prev)
	return models.StreakRecord{LongestStreak: prev.LongestStreak}
}

func credit(prev models.StreakRecord, day string) models.StreakRecord {
	next := models.StreakRecord{
		CurrentStreak: prev.CurrentStreak + 1,
		LongestStreak: prev.LongestStreak,
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	d := day
	next.LastCompletedDate = &d
	return next
}

// normalize repairs records that violate the invariants (negative values or
// longest below current), which can arrive from an older remote row
func normalize(r models.StreakRecord) models.StreakRecord {
	if r.CurrentStreak < 0 {
		r.CurrentStreak = 0
	}
	if r.LongestStreak < r.CurrentStreak {
		r.LongestStreak = r.CurrentStreak
	}
	return r
}
