// Package monitoring configures the bot's logging: a console writer for
// interactive use plus an optional file sink under the log directory.
package monitoring

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

func defaultLogf(format string, v ...interface{})   { logger.Info().Msgf(format, v...) }
func defaultErrorf(format string, v ...interface{}) { logger.Error().Msgf(format, v...) }
func defaultDebugf(format string, v ...interface{}) { logger.Debug().Msgf(format, v...) }

// Logf is the package-level diagnostic logger. It defaults to info-level
// zerolog output but may be replaced by SetLogger. Tests can redirect or
// mute it.
var Logf func(format string, v ...interface{}) = defaultLogf

// Errorf logs at error level through the package logger.
var Errorf func(format string, v ...interface{}) = defaultErrorf

// Debugf logs at debug level through the package logger.
var Debugf func(format string, v ...interface{}) = defaultDebugf

// SetLogger replaces the package logger funcs. Passing nil will set no-op
// loggers.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		noop := func(string, ...interface{}) {}
		Logf, Errorf, Debugf = noop, noop, noop
		return
	}
	Logf, Errorf, Debugf = f, f, f
}

// ResetLogger restores the zerolog-backed default logger funcs.
func ResetLogger() {
	Logf, Errorf, Debugf = defaultLogf, defaultErrorf, defaultDebugf
}

// Setup wires the default zerolog backend. In dev the level is debug and
// output is console-only; otherwise a file sink is added under logDir and
// the level is info. Returns a closer for the file sink, which may be nil.
func Setup(logDir string, dev bool) (io.Closer, error) {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	var sink io.Writer = console
	var closer io.Closer

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(logDir, "bot.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	logger = zerolog.New(sink).Level(level).With().Timestamp().Logger()
	ResetLogger()
	return closer, nil
}
