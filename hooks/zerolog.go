package hooks

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog builds a zerolog.Logger.  format "json" writes one JSON object
// per line; anything else uses the human-readable console writer.
func NewZerolog(level, format string, out io.Writer) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	w := out
	if format != "json" {
		w = zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
			cw.Out = out
			cw.TimeFormat = time.RFC3339
		})
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// ZerologLogger adapts zerolog to core.Logger.  fields are key/value pairs.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps l.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger { return &ZerologLogger{log: l} }

func (z *ZerologLogger) Debug(msg string, fields ...interface{}) { emit(z.log.Debug(), msg, fields) }
func (z *ZerologLogger) Info(msg string, fields ...interface{})  { emit(z.log.Info(), msg, fields) }
func (z *ZerologLogger) Warn(msg string, fields ...interface{})  { emit(z.log.Warn(), msg, fields) }
func (z *ZerologLogger) Error(msg string, fields ...interface{}) { emit(z.log.Error(), msg, fields) }

func emit(ev *zerolog.Event, msg string, fields []interface{}) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		switch v := fields[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case fmt.Stringer:
			ev = ev.Str(key, v.String())
		default:
			ev = ev.Interface(key, v)
		}
	}
	if len(fields)%2 == 1 {
		ev = ev.Interface("!BADKEY", fields[len(fields)-1])
	}
	ev.Msg(msg)
}
