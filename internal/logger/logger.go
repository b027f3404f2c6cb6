package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/enriqueortiz12/betterU-TestFlight-v5-sub000/internal/constants"
)

var (
	// Logger is the global logger instance
	Logger *log.Logger

	// reporter fans error records out to Logger and Sentry when a DSN is configured
	reporter *slog.Logger
)

// Config holds logger configuration
type Config struct {
	Debug     bool
	ConfigDir string
	SentryDSN string
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	logDir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}

	// Create rotating file handler
	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, constants.AppName+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.WarnLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	// In debug mode, write to both stderr and file
	var writer io.Writer = fileWriter
	if cfg.Debug {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	InitWriter(writer, level, cfg.Debug)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Release:          constants.AppName + "@" + constants.Version,
		})
		if err != nil {
			Logger.Warn("Sentry disabled", "error", err)
			return nil
		}
		reporter = slog.New(slogmulti.Fanout(
			Logger,
			slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
		))
	}

	return nil
}

// InitWriter points the global logger at w without file rotation or Sentry
func InitWriter(w io.Writer, level log.Level, reportCaller bool) {
	Logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    reportCaller,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
	reporter = nil
}

// Close flushes buffered Sentry events
func Close() {
	if reporter != nil {
		sentry.Flush(2 * time.Second)
	}
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message and reports it to Sentry when enabled
func Error(msg string, keyvals ...interface{}) {
	if reporter != nil {
		reporter.Error(msg, keyvals...)
		return
	}
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs a fatal error and exits
func Fatal(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
