package diagnostics

import (
	"context"
	"log/slog"

	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// Compile-time assertion that Logger satisfies entity.Listener.
var _ entity.Listener = (*Logger)(nil)

// Logger writes the entity events selected by its [Config] to a
// [slog.Logger].
type Logger struct {
	log    *slog.Logger
	level  slog.Level
	filter filter
}

// LoggerOption configures a [Logger].
type LoggerOption func(*Logger)

// WithLevel sets the level event records are logged at. Default: info.
func WithLevel(l slog.Level) LoggerOption {
	return func(lg *Logger) { lg.level = l }
}

// NewLogger returns a Logger writing to log (slog.Default when nil).
func NewLogger(log *slog.Logger, cfg Config, opts ...LoggerOption) *Logger {
	if log == nil {
		log = slog.Default()
	}
	l := &Logger{log: log, level: slog.LevelInfo, filter: newFilter(cfg)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Attach subscribes l to list. Attaching twice has no effect.
func (l *Logger) Attach(list *entity.List) { list.Subscribe(l) }

// Detach unsubscribes l from list.
func (l *Logger) Detach(list *entity.List) { list.Unsubscribe(l) }

// HandleEntityEvent implements [entity.Listener].
func (l *Logger) HandleEntityEvent(ev entity.Event) {
	c, ok := l.filter.accept(ev)
	if !ok {
		return
	}
	attrs := []any{
		slog.Int("index", ev.Entity.Index()),
		slog.String("classname", ev.Entity.ClassName()),
	}
	if name := ev.Entity.TargetName(); name != "" {
		attrs = append(attrs, slog.String("targetname", name))
	}

	var msg string
	switch c {
	case CategoryEntityCreated:
		msg = "entity created"
	case CategoryEntityRemoved:
		msg = "entity removed"
	case CategoryKeyValueAdded:
		msg = "keyvalue added"
		attrs = append(attrs, slog.String("key", ev.Key), slog.String("value", ev.Value))
	case CategoryKeyValueChanged:
		msg = "keyvalue changed"
		attrs = append(attrs, slog.String("key", ev.Key), slog.String("old", ev.Previous), slog.String("new", ev.Value))
	case CategoryKeyValueRemoved:
		msg = "keyvalue removed"
		attrs = append(attrs, slog.String("key", ev.Key), slog.String("value", ev.Value))
	case CategoryKeyValuesCleared:
		msg = "keyvalues cleared"
	default:
		return
	}
	l.log.Log(context.Background(), l.level, msg, attrs...)
}
