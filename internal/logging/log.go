/*
Package logging wraps zerolog to give every component of beacon a
component-scoped structured logger with a consistent set of context
fields: node, layer, and event.
*/
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, set by Init.
var Logger zerolog.Logger

// Level is the minimum severity that will be emitted.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Call once at process startup.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with a component name, e.g.
// "forkdetector", "orchestrator", "monitor".
func WithComponent(component string) *zerolog.Logger {
	l := Logger.With().Str("component", component).Logger()
	return &l
}

// WithNode returns a child logger tagged with a node ID.
func WithNode(nodeID string) *zerolog.Logger {
	l := Logger.With().Str("node_id", nodeID).Logger()
	return &l
}

// WithLayer returns a child logger tagged with a layer name.
func WithLayer(layer string) *zerolog.Logger {
	l := Logger.With().Str("layer", layer).Logger()
	return &l
}

// WithEvent returns a child logger tagged with a HealthEvent ID.
func WithEvent(eventID string) *zerolog.Logger {
	l := Logger.With().Str("event_id", eventID).Logger()
	return &l
}
