package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// NewSlog wraps a zerolog logger behind the standard slog front so packages
// only depend on *slog.Logger. Records logged through the *Context methods
// pick up the image/entry fields carried by the context.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{zl: zl})
}

type slogBridge struct {
	zl *zerolog.Logger

	// attrs accumulated by Logger.With, replayed before each record's own
	attrs []slog.Attr
}

// Enabled always answers yes; zerolog's global level does the filtering.
func (h *slogBridge) Enabled(context.Context, slog.Level) bool { return true }

func (h *slogBridge) Handle(ctx context.Context, r slog.Record) error {
	ev := event(FromContext(ctx, h.zl), r.Level)
	for _, a := range h.attrs {
		appendAttr(ev, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(ev, a)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (h *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(cp.attrs[:len(cp.attrs):len(cp.attrs)], attrs...)
	return &cp
}

// WithGroup is a no-op; the binaries log flat key/value pairs.
func (h *slogBridge) WithGroup(string) slog.Handler { return h }

func event(zl *zerolog.Logger, lvl slog.Level) *zerolog.Event {
	switch {
	case lvl >= slog.LevelError:
		return zl.Error()
	case lvl >= slog.LevelWarn:
		return zl.Warn()
	case lvl >= slog.LevelInfo:
		return zl.Info()
	default:
		return zl.Debug()
	}
}

func appendAttr(ev *zerolog.Event, a slog.Attr) {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		ev.Str(a.Key, v.String())
	case slog.KindInt64:
		ev.Int64(a.Key, v.Int64())
	case slog.KindUint64:
		ev.Uint64(a.Key, v.Uint64())
	case slog.KindFloat64:
		ev.Float64(a.Key, v.Float64())
	case slog.KindBool:
		ev.Bool(a.Key, v.Bool())
	case slog.KindDuration:
		ev.Dur(a.Key, v.Duration())
	case slog.KindTime:
		ev.Time(a.Key, v.Time().UTC())
	default:
		ev.Interface(a.Key, v.Any())
	}
}
