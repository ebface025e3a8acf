package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/tickup/internal/constants"
)

// Logger is the global logger. Nil until Init; the helpers below are no-ops until then.
var Logger *log.Logger

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	Debug bool
	// ConfigDir receives a logs/ directory with the rotating log file
	ConfigDir string
	// Format is FormatText (default) or FormatJSON
	Format string
}

func (c Config) formatter() (log.Formatter, error) {
	switch c.Format {
	case "", FormatText:
		return log.TextFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", c.Format)
	}
}

// Path returns the log file written for cfg.
func (c Config) Path() string {
	return filepath.Join(c.ConfigDir, "logs", constants.AppName+".log")
}

// Init points the global logger at a rotating file, mirrored to stderr in debug mode.
func Init(cfg Config) error {
	formatter, err := cfg.formatter()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0755); err != nil {
		return err
	}

	var out io.Writer = &lumberjack.Logger{
		Filename:   cfg.Path(),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	opts := log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
		Prefix:          constants.AppName,
		Formatter:       formatter,
	}
	if cfg.Debug {
		out = io.MultiWriter(os.Stderr, out)
		opts.Level = log.DebugLevel
		opts.ReportCaller = true
	}

	Logger = log.NewWithOptions(out, opts)
	return nil
}

func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Helper()
		Logger.Error(msg, keyvals...)
	}
}
