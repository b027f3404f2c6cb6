package constants

import "time"

const (
	AppName            = "betteru"
	DefaultKeyringUser = "ledger-connection"
	DefaultConfigDir   = "~/.config/betteru"
	SnapshotFileName   = "snapshot.db"
	LockfileName       = "betteru.lock"
	Version            = "v0.3.0"

	// DateFormat is the calendar day format used for every day key (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// Scheduler constants
	DefaultTickInterval      = 30 * time.Second
	DefaultReconcileInterval = 5 * time.Minute
	DefaultFlushInterval     = 10 * time.Second

	// Remote write constants
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 1000 * time.Millisecond
	DefaultRetryMaxDelay  = 10000 * time.Millisecond
	DefaultRemoteTimeout  = 15 * time.Second

	// Counter defaults
	DefaultWaterGoal    = 2.0 // litres
	DefaultCaloriesGoal = 2000

	// MoodRetentionDays bounds how many days of mood entries stay in the local snapshot
	MoodRetentionDays = 30

	// Snapshot keys, namespaced per user by the tracker
	KeyCalories = "calories"
	KeyWater    = "water"
	KeyStats    = "stats"
	KeyStreak   = "streak"
	KeyMood     = "mood"
	KeyOutbox   = "outbox"

	// Ledger drivers
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)
