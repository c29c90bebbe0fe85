package diagnostics

import (
	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// Compile-time assertion that Recorder satisfies entity.Listener.
var _ entity.Listener = (*Recorder)(nil)

// Change is a structured record of one observed mutation.
type Change struct {
	Category  string `json:"category" yaml:"category"`
	Index     int    `json:"index" yaml:"index"`
	ClassName string `json:"classname" yaml:"classname"`
	Key       string `json:"key,omitempty" yaml:"key,omitempty"`
	Previous  string `json:"previous,omitempty" yaml:"previous,omitempty"`
	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
}

// Recorder buffers [Change] records until they are drained. A Recorder may be
// attached to several lists, but all of them must be driven by the same
// goroutine.
type Recorder struct {
	filter  filter
	changes []Change
}

// NewRecorder returns an empty Recorder.
func NewRecorder(cfg Config) *Recorder {
	return &Recorder{filter: newFilter(cfg)}
}

// Attach subscribes r to list. Attaching twice has no effect.
func (r *Recorder) Attach(list *entity.List) { list.Subscribe(r) }

// Detach unsubscribes r from list.
func (r *Recorder) Detach(list *entity.List) { list.Unsubscribe(r) }

// HandleEntityEvent implements [entity.Listener].
func (r *Recorder) HandleEntityEvent(ev entity.Event) {
	c, ok := r.filter.accept(ev)
	if !ok {
		return
	}
	ch := Change{
		Category:  c.String(),
		Index:     ev.Entity.Index(),
		ClassName: ev.Entity.ClassName(),
		Key:       ev.Key,
	}
	switch c {
	case CategoryKeyValueAdded, CategoryKeyValueRemoved:
		ch.Value = ev.Value
	case CategoryKeyValueChanged:
		ch.Previous = ev.Previous
		ch.Value = ev.Value
	}
	r.changes = append(r.changes, ch)
}

// Len returns the number of buffered changes.
func (r *Recorder) Len() int { return len(r.changes) }

// Drain returns the buffered changes and empties the buffer.
func (r *Recorder) Drain() []Change {
	out := r.changes
	r.changes = nil
	return out
}
