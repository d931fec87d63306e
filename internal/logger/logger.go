// Package logger sets up zerolog with a console writer and rotating log files.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	mainLogName  = "routeguessr.log"
	errorLogName = "routeguessr_error.log"
)

// Config controls log level, destination and rotation.
type Config struct {
	Level      string // trace, debug, info, warn, error
	Dir        string // empty disables file output
	MaxSize    int    // megabytes per file
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	ErrorFile  bool // also write error and above to a separate file
	Console    io.Writer
	NoColor    bool
}

// DefaultConfig returns console logging at info plus rotated files under logs/.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Dir:        "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		ErrorFile:  true,
	}
}

// Init builds the logger described by cfg and installs it as the global
// zerolog logger.
func Init(cfg Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339, NoColor: cfg.NoColor},
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return zerolog.Nop(), err
		}
		writers = append(writers, rotating(cfg, mainLogName))
		if cfg.ErrorFile {
			writers = append(writers, &FilteredWriter{
				Writer:   rotating(cfg, errorLogName),
				MinLevel: zerolog.ErrorLevel,
			})
		}
	}

	l := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	log.Logger = l

	l.Debug().Str("level", level.String()).Str("dir", cfg.Dir).Msg("logger initialised")
	return l, nil
}

func rotating(cfg Config, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, name),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// FilteredWriter passes through only events at MinLevel or above.
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write is used for events without a level and always passes through.
func (w *FilteredWriter) Write(p []byte) (int, error) {
	return w.Writer.Write(p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}
