package logging

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts zerolog to Logger. The CLI uses it with a console
// writer on stderr so log lines do not interleave with REPL output on stdout.
type ZerologLogger struct {
	l zerolog.Logger
}

func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

// NewConsoleZerologLogger returns a human-friendly logger writing to w.
func NewConsoleZerologLogger(w io.Writer, level Level) *ZerologLogger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	l := zerolog.New(cw).Level(zerologLevel(level)).With().Timestamp().Logger()
	return NewZerologLogger(l)
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.log(z.l.Debug(), msg, args)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.log(z.l.Info(), msg, args)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.log(z.l.Warn(), msg, args)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.log(z.l.Error(), msg, args)
}

func (z *ZerologLogger) With(args ...any) Logger {
	c := z.l.With()
	for i := 0; i < len(args); i += 2 {
		c = c.Interface(keyAt(args, i), valueAt(args, i+1))
	}
	return &ZerologLogger{l: c.Logger()}
}

func (z *ZerologLogger) log(e *zerolog.Event, msg string, args []any) {
	for i := 0; i < len(args); i += 2 {
		v := valueAt(args, i+1)
		if err, ok := v.(error); ok {
			e = e.AnErr(keyAt(args, i), err)
			continue
		}
		e = e.Interface(keyAt(args, i), v)
	}
	e.Msg(msg)
}

func keyAt(args []any, i int) string {
	if s, ok := args[i].(string); ok {
		return s
	}
	return fmt.Sprint(args[i])
}

// valueAt tolerates an odd number of args the same way slog does: the
// dangling key gets a "!MISSING" value instead of panicking.
func valueAt(args []any, i int) any {
	if i < len(args) {
		return args[i]
	}
	return "!MISSING"
}
