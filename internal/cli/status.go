package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/pipeline"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/tracker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(16)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

const barWidth = 20

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}
	st, err := ctx.Engine.Snapshot()
	if err != nil {
		return err
	}
	pending, err := ctx.Engine.Pending()
	if err != nil {
		return err
	}
	ctx.println(renderStatus(st, pending))
	return nil
}

func renderStatus(st tracker.State, pending []pipeline.OutboxEntry) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("betteru · %s · %s", st.UserID, st.Today)))
	b.WriteString("\n\n")

	water := st.Counter(models.CounterWater)
	calories := st.Counter(models.CounterCalories)
	b.WriteString(row("Water", fmt.Sprintf("%s %.2f / %.2f L", bar(water.Progress()), water.Consumed, water.Goal)))
	b.WriteString(row("Calories", fmt.Sprintf("%s %.0f / %.0f kcal", bar(calories.Progress()), calories.Consumed, calories.Goal)))
	b.WriteString("\n")

	b.WriteString(row("Workout today", check(st.Stats.TodayWorkoutCompleted)))
	b.WriteString(row("Mental today", check(st.Stats.TodayMentalCompleted)))
	b.WriteString(row("Streak", fmt.Sprintf("%d (longest %d)", st.Streak.CurrentStreak, st.Streak.LongestStreak)))
	b.WriteString("\n")

	b.WriteString(row("Workouts", fmt.Sprint(st.Stats.WorkoutsTotal)))
	b.WriteString(row("Minutes", fmt.Sprint(st.Stats.MinutesTotal)))
	b.WriteString(row("Mental sessions", fmt.Sprint(st.Stats.MentalSessionsTotal)))
	b.WriteString(row("PRs this month", fmt.Sprint(st.Stats.PRsThisMonth)))

	if moods := models.MoodsForDay(st.Moods, st.Today); len(moods) > 0 {
		b.WriteString(row("Mood", string(moods[len(moods)-1].Value)))
	}

	if st.Stats.LastResetDate != "" && st.Stats.LastResetDate != st.Today {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("Counters belong to %s; run 'betteru rollover'", st.Stats.LastResetDate)))
	}
	if len(pending) > 0 {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("%d write(s) waiting to sync", len(pending))))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func check(done bool) string {
	if done {
		return doneStyle.Render("✓")
	}
	return "·"
}

// bar draws a fixed width progress bar; progress past the goal fills it
func bar(progress float64) string {
	filled := int(progress * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}
