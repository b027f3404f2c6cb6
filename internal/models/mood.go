package models

import (
	"fmt"
	"strings"
	"time"
)

// Mood is the self-reported mood scale
type Mood string

const (
	MoodGreat Mood = "great"
	MoodGood  Mood = "good"
	MoodOkay  Mood = "okay"
	MoodBad   Mood = "bad"
	MoodAwful Mood = "awful"
)

// ParseMood converts a user supplied value into a Mood
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MoodGreat, MoodGood, MoodOkay, MoodBad, MoodAwful:
		return m, nil
	}
	return "", fmt.Errorf("invalid mood %q (expected great, good, okay, bad or awful)", s)
}

// MoodEntry is a single immutable mood log
type MoodEntry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD format
	Value     Mood      `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodsForDay filters entries to the given day, preserving order
func MoodsForDay(entries []MoodEntry, day string) []MoodEntry {
	var out []MoodEntry
	for _, e := range entries {
		if e.Date == day {
			out = append(out, e)
		}
	}
	return out
}
