package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/models"
)

type WaterCmd struct {
	Add WaterAddCmd `cmd:"" help:"Log water intake."`
}

type WaterAddCmd struct {
	Amount float64 `arg:"" help:"Amount in litres (negative to correct a mistake)."`
	Ml     bool    `help:"Interpret the amount as millilitres."`
}

func (c *WaterAddCmd) Run(ctx *Context) error {
	litres := c.Amount
	if c.Ml {
		litres = c.Amount / 1000
	}
	bg := context.Background()
	if err := ctx.Prepare(bg); err != nil {
		return err
	}
	if err := ctx.settle(bg, ctx.Engine.AddWater(bg, litres)); err != nil {
		return err
	}
	counter, err := ctx.Engine.Counter(models.CounterWater)
	if err != nil {
		return err
	}
	ctx.printf("Water: %.2f / %.2f L\n", counter.Consumed, counter.Goal)
	return nil
}

type CaloriesCmd struct {
	Add CaloriesAddCmd `cmd:"" help:"Log calories."`
}

type CaloriesAddCmd struct {
	Amount float64 `arg:"" help:"Calories (kcal, negative to correct a mistake)."`
}

func (c *CaloriesAddCmd) Run(ctx *Context) error {
	bg := context.Background()
	if err := ctx.Prepare(bg); err != nil {
		return err
	}
	if err := ctx.settle(bg, ctx.Engine.AddCalories(bg, c.Amount)); err != nil {
		return err
	}
	counter, err := ctx.Engine.Counter(models.CounterCalories)
	if err != nil {
		return err
	}
	ctx.printf("Calories: %.0f / %.0f kcal\n", counter.Consumed, counter.Goal)
	return nil
}

type GoalCmd struct {
	Set GoalSetCmd `cmd:"" help:"Set a daily goal."`
}

type GoalSetCmd struct {
	Counter string  `arg:"" help:"Counter to change (calories or water)."`
	Value   float64 `arg:"" help:"New goal (kcal or litres)."`
}

func (c *GoalSetCmd) Run(ctx *Context) error {
	kind, err := models.ParseCounterKind(c.Counter)
	if err != nil {
		return err
	}
	bg := context.Background()
	if err := ctx.Prepare(bg); err != nil {
		return err
	}
	if err := ctx.settle(bg, ctx.Engine.SetGoal(bg, kind, c.Value)); err != nil {
		return err
	}
	ctx.printf("Set %s goal to %s\n", kind, formatAmount(kind, c.Value))
	return nil
}

type MoodCmd struct {
	Log  MoodLogCmd  `cmd:"" help:"Log how you feel right now."`
	List MoodListCmd `cmd:"" help:"List mood entries for a day."`
}

type MoodLogCmd struct {
	Value string `arg:"" help:"great, good, okay, bad or awful."`
}

func (c *MoodLogCmd) Run(ctx *Context) error {
	mood, err := models.ParseMood(c.Value)
	if err != nil {
		return err
	}
	bg := context.Background()
	if err := ctx.Prepare(bg); err != nil {
		return err
	}
	if err := ctx.settle(bg, ctx.Engine.LogMood(bg, mood)); err != nil {
		return err
	}
	ctx.printf("Logged mood: %s\n", mood)
	return nil
}

type MoodListCmd struct {
	Date string `help:"Date in YYYY-MM-DD format (default: today)." default:""`
}

func (c *MoodListCmd) Run(ctx *Context) error {
	if err := ctx.Open(context.Background()); err != nil {
		return err
	}
	entries, err := ctx.Engine.Moods(c.Date)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ctx.println("No moods logged.")
		return nil
	}
	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}
	for _, e := range entries {
		ctx.printf("%s  %s\n", e.CreatedAt.In(loc).Format("15:04"), e.Value)
	}
	return nil
}

type StatCmd struct {
	Inc StatIncCmd `cmd:"" help:"Increment a stat (workouts, minutes, mental_sessions, prs_this_month)."`
}

type StatIncCmd struct {
	Name   string `arg:"" help:"Stat to increment."`
	Amount int    `arg:"" optional:"" help:"Amount to add (default 1)." default:"1"`
}

func (c *StatIncCmd) Run(ctx *Context) error {
	name, err := models.ParseStatName(c.Name)
	if err != nil {
		return err
	}
	bg := context.Background()
	if err := ctx.Prepare(bg); err != nil {
		return err
	}
	before, err := ctx.Engine.Streak()
	if err != nil {
		return err
	}
	if err := ctx.settle(bg, ctx.Engine.IncrementStat(bg, name, c.Amount)); err != nil {
		return err
	}
	st, err := ctx.Engine.Snapshot()
	if err != nil {
		return err
	}
	ctx.printf("%s: %d\n", name, st.Stats.Value(name))
	if st.Streak.CurrentStreak != before.CurrentStreak {
		ctx.printf("🔥 Daily goals complete! Streak: %d\n", st.Streak.CurrentStreak)
	}
	return nil
}

func formatAmount(kind models.CounterKind, v float64) string {
	if kind == models.CounterWater {
		return fmt.Sprintf("%.2f L", v)
	}
	return fmt.Sprintf("%.0f kcal", math.Round(v))
}
