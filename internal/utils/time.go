package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
)

// Clock supplies the current instant. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant until moved with Set or Advance.
// It is safe to move while background writers read it.
type FixedClock struct {
	mu sync.Mutex
	T  time.Time
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.T
}

// Set moves the clock to t
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = t
}

// Advance moves the clock forward by d
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.T = c.T.Add(d)
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// ValidateTimezone checks if the timezone name is valid.
func ValidateTimezone(timezone string) bool {
	_, err := LoadLocation(timezone)
	return err == nil
}

// Today returns the calendar day (YYYY-MM-DD) of the clock's instant in loc.
func Today(clock Clock, loc *time.Location) string {
	return clock.Now().In(loc).Format(constants.DateFormat)
}

// ParseDay parses a day string (YYYY-MM-DD) as midnight UTC.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(constants.DateFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", day, err)
	}
	return t, nil
}

// AddDays shifts a day string by n calendar days.
func AddDays(day string, n int) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// PreviousDay returns the calendar day before day.
func PreviousDay(day string) (string, error) {
	return AddDays(day, -1)
}

// SameMonth reports whether two day strings fall in the same calendar month.
func SameMonth(a, b string) bool {
	return len(a) >= 7 && len(b) >= 7 && a[:7] == b[:7]
}
