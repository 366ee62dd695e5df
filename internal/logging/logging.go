// Package logging provides the zerolog-backed Logger every package's narrow
// Logger interface (Info/Warn/Error(msg string, args ...any)) depends on.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger adapts zerolog.Logger to the Info/Warn/Error(msg, args...) shape
// shared by executor, sandbox, policy, proxy, and orchestrator's own Logger
// interfaces, so one concrete logger wires into all of them.
type Logger struct {
	z zerolog.Logger
}

// New builds a Logger writing JSON lines to w, or a human-readable console
// writer when pretty is true (useful for local `executor-server serve` runs).
func New(w io.Writer, level string, pretty bool) Logger {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zerolog.SetGlobalLevel(parseLevel(level))
	return Logger{z: zerolog.New(w).With().Timestamp().Logger()}
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l Logger) Info(msg string, args ...any)  { l.event(l.z.Info(), msg, args) }
func (l Logger) Warn(msg string, args ...any)  { l.event(l.z.Warn(), msg, args) }
func (l Logger) Error(msg string, args ...any) { l.event(l.z.Error(), msg, args) }

// event applies args as alternating key/value pairs before emitting msg.
// An odd trailing arg is logged under "extra" rather than dropped.
func (l Logger) event(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	if len(args)%2 == 1 {
		e = e.Interface("extra", args[len(args)-1])
	}
	e.Msg(msg)
}
