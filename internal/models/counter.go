package models

import (
	"fmt"
	"strings"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
)

// CounterKind identifies one of the daily consumption counters
type CounterKind string

const (
	CounterCalories CounterKind = "calories"
	CounterWater    CounterKind = "water"
)

// CounterKinds lists every consumption counter in a stable order
var CounterKinds = []CounterKind{CounterCalories, CounterWater}

// ParseCounterKind converts a user supplied name into a CounterKind
func ParseCounterKind(s string) (CounterKind, error) {
	switch CounterKind(strings.ToLower(strings.TrimSpace(s))) {
	case CounterCalories:
		return CounterCalories, nil
	case CounterWater:
		return CounterWater, nil
	}
	return "", fmt.Errorf("unknown counter %q (expected calories or water)", s)
}

// ConsumptionCounter tracks how much of a daily goal has been consumed
type ConsumptionCounter struct {
	Consumed float64 `json:"consumed"` // amount consumed today, never negative
	Goal     float64 `json:"goal"`     // daily target, kept across rollover
}

// DefaultCounter returns the counter a user starts with before any activity
func DefaultCounter(kind CounterKind) ConsumptionCounter {
	switch kind {
	case CounterWater:
		return ConsumptionCounter{Goal: constants.DefaultWaterGoal}
	default:
		return ConsumptionCounter{Goal: constants.DefaultCaloriesGoal}
	}
}

// Apply returns a copy of the counter with delta added to Consumed.
// Consumed is clamped at zero.
func (c ConsumptionCounter) Apply(delta float64) ConsumptionCounter {
	c.Consumed += delta
	if c.Consumed < 0 {
		c.Consumed = 0
	}
	return c
}

// Reset clears the consumed amount and keeps the goal
func (c ConsumptionCounter) Reset() ConsumptionCounter {
	c.Consumed = 0
	return c
}

// Progress returns the fraction of the goal consumed (0 when no goal is set)
func (c ConsumptionCounter) Progress() float64 {
	if c.Goal <= 0 {
		return 0
	}
	return c.Consumed / c.Goal
}

// Validate checks the counter invariants
func (c ConsumptionCounter) Validate() error {
	if c.Consumed < 0 {
		return fmt.Errorf("consumed must not be negative, got %v", c.Consumed)
	}
	if c.Goal <= 0 {
		return fmt.Errorf("goal must be positive, got %v", c.Goal)
	}
	return nil
}
