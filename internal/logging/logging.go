// Package logging wires the global zerolog logger to the console and a rotating file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file created inside Options.Dir.
const FileName = "reroller.log"

// Options configures Init.
type Options struct {
	// Dir holds the rotating JSON log. Empty disables the file output.
	Dir string
	// Debug lowers the console level from Info to Debug.
	Debug bool
	// Console receives human readable output. Defaults to os.Stdout.
	Console io.Writer
}

// Init replaces the global logger.
// Console gets Info and above (Debug with Options.Debug); the file gets
// Debug and above as JSON with rotation.
// Returns a cleanup function to close the log file.
func Init(opts Options) (func(), error) {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	consoleLevel := zerolog.InfoLevel
	if opts.Debug {
		consoleLevel = zerolog.DebugLevel
	}

	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly}
	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: consoleWriter},
			Level:  consoleLevel,
		},
	}

	cleanup := func() {}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		// lumberjack handles log rotation
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, FileName),
			MaxSize:    10, // 10MB
			MaxBackups: 3,
			MaxAge:     7, // days
			LocalTime:  true,
		}
		writers = append(writers, lj)

		cleanup = func() {
			if err := lj.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
			}
		}
	}

	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	return cleanup, nil
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
