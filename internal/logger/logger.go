// Package logger wraps zerolog behind the package-level call convention the
// rest of this module was written against (Info/Infof/Warn/Warnf/...), the
// same shape the trader package imports from its own logger package.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	Configure("console")
}

// Configure selects the wire format: "console" for a human-readable
// development writer, anything else for raw JSON lines to stdout.
func Configure(format string) {
	var w io.Writer = os.Stdout
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	base = zerolog.New(w).With().Timestamp().Logger()
}

// Logger is a component-scoped sub-logger. It carries the same
// Info/Infof/Warn/... call shape as the package-level free functions below,
// plus Raw for call sites that need the full zerolog builder chain
// (structured fields via .Int64()/.Float64()/... before .Msg()).
type Logger struct {
	zl zerolog.Logger
}

// With returns a sub-logger tagged with a component name, used by each
// subsystem (execution, anomaly, cvd, position, risk, paper, ledger) to
// scope its own log lines without a global logger per package.
func With(component string) Logger {
	return Logger{zl: base.With().Str("component", component).Logger()}
}

// Raw exposes the underlying zerolog.Logger for call sites that need
// structured fields rather than a formatted message.
func (l Logger) Raw() zerolog.Logger { return l.zl }

func (l Logger) Info(msg string)                  { l.zl.Info().Msg(msg) }
func (l Logger) Infof(format string, args ...any) { l.zl.Info().Msgf(format, args...) }
func (l Logger) Warn(msg string)                  { l.zl.Warn().Msg(msg) }
func (l Logger) Warnf(format string, args ...any) { l.zl.Warn().Msgf(format, args...) }
func (l Logger) Error(msg string)                 { l.zl.Error().Msg(msg) }
func (l Logger) Errorf(format string, args ...any) { l.zl.Error().Msgf(format, args...) }
func (l Logger) Debug(msg string)                  { l.zl.Debug().Msg(msg) }
func (l Logger) Debugf(format string, args ...any) { l.zl.Debug().Msgf(format, args...) }
func (l Logger) ErrorErr(err error, msg string)     { l.zl.Error().Err(err).Msg(msg) }
func (l Logger) WarnErr(err error, msg string)      { l.zl.Warn().Err(err).Msg(msg) }

func Info(msg string)                       { base.Info().Msg(msg) }
func Infof(format string, args ...any)       { base.Info().Msgf(format, args...) }
func Warn(msg string)                        { base.Warn().Msg(msg) }
func Warnf(format string, args ...any)       { base.Warn().Msgf(format, args...) }
func Error(msg string)                       { base.Error().Msg(msg) }
func Errorf(format string, args ...any)      { base.Error().Msgf(format, args...) }
func Debug(msg string)                       { base.Debug().Msg(msg) }
func Debugf(format string, args ...any)      { base.Debug().Msgf(format, args...) }
func ErrorErr(err error, msg string)         { base.Error().Err(err).Msg(msg) }
func WarnErr(err error, msg string)          { base.Warn().Err(err).Msg(msg) }
