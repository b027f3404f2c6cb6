package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/cli"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/config"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/errors"
	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/logger"
)

var CLI struct {
	Version   kong.VersionFlag
	User      string `help:"User to track (overrides BETTERU_USER)."`
	ConfigDir string `help:"Directory for the snapshot, logs and lockfile (overrides BETTERU_CONFIG_DIR)."`
	Verbose   bool   `name:"debug" help:"Log debug output to stderr."`

	Init      cli.InitCmd      `cmd:"" help:"Initialize the local snapshot and the ledger schema."`
	Status    cli.StatusCmd    `cmd:"" help:"Show today's counters, stats and streak." default:"1"`
	Water     cli.WaterCmd     `cmd:"" help:"Track water intake."`
	Calories  cli.CaloriesCmd  `cmd:"" help:"Track calories."`
	Goal      cli.GoalCmd      `cmd:"" help:"Manage daily goals."`
	Mood      cli.MoodCmd      `cmd:"" help:"Log and review moods."`
	Stat      cli.StatCmd      `cmd:"" help:"Record workouts, minutes, mental sessions and PRs."`
	Rollover  cli.RolloverCmd  `cmd:"" help:"Run the daily rollover check now."`
	Reconcile cli.ReconcileCmd `cmd:"" help:"Compare local state with the ledger and push differences."`
	Pull      cli.PullCmd      `cmd:"" help:"Adopt remote state for anything missing locally."`
	Run       cli.RunCmd       `cmd:"" help:"Run the rollover scheduler in the foreground."`
	Backup    cli.BackupCmd    `cmd:"" help:"Manage local snapshot backups."`
	Doctor    cli.DoctorCmd    `cmd:"" help:"Run health checks and diagnostics."`
	Debug     cli.DebugCmd     `cmd:"" help:"Debug commands for troubleshooting."`
	Keyring   cli.KeyringCmd   `cmd:"" help:"Manage the ledger connection string in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Local-first daily activity tracker with streaks"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg := config.Load()
	if CLI.ConfigDir != "" {
		cfg.SetConfigDir(CLI.ConfigDir)
	}
	if CLI.User != "" {
		cfg.User = CLI.User
	}
	if CLI.Verbose {
		cfg.Debug = true
	}

	if err := logger.Init(logger.Config{
		Debug:     cfg.Debug,
		ConfigDir: cfg.ConfigDir,
		SentryDSN: cfg.SentryDSN,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	for _, w := range cfg.Warnings {
		logger.Warn("Ignoring configuration value", "detail", w)
	}

	// doctor reports configuration problems itself
	if ctx.Command() != "doctor" {
		if err := cfg.Validate(); err != nil {
			errors.Fatal(err)
		}
	}

	appCtx := cli.NewContext(cfg)
	err := ctx.Run(appCtx)
	if closeErr := appCtx.Close(); closeErr != nil {
		logger.Warn("Failed to close storage", "error", closeErr)
	}
	if err != nil {
		errors.Fatal(err)
	}
	logger.Close()
}
