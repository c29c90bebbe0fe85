package entity

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"strconv"
)

// List is the ordered entity list of a level. Index 0 always holds the root
// entity; this is checked once by [NewList] and preserved by every method.
type List struct {
	entities  []*Entity
	listeners []Listener
	newRecord func() Record
}

// ListOption configures a [List].
type ListOption func(*List)

// WithRecordFactory sets the constructor used for the backing records of
// entities created after load. The default creates a [MemRecord].
func WithRecordFactory(fn func() Record) ListOption {
	return func(l *List) {
		if fn != nil {
			l.newRecord = fn
		}
	}
}

// NewList wraps records into a [List]. The records must be non-empty, the
// first must carry the root classname, and no other may. Every record must
// have a classname. Violations wrap [ErrStructural].
func NewList(records []Record, opts ...ListOption) (*List, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no entities", ErrStructural)
	}
	roots := 0
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("%w: entity %d has no backing record", ErrStructural, i)
		}
		cn, ok := r.Get(KeyClassName)
		if !ok || cn == "" {
			return nil, fmt.Errorf("%w: entity %d has no classname", ErrStructural, i)
		}
		if cn == RootClassName {
			roots++
		}
	}
	if cn, _ := records[0].Get(KeyClassName); cn != RootClassName {
		return nil, fmt.Errorf("%w: first entity is %q, expected %q", ErrStructural, cn, RootClassName)
	}
	if roots != 1 {
		return nil, fmt.Errorf("%w: found %d %q entities, expected exactly one", ErrStructural, roots, RootClassName)
	}

	l := &List{
		entities:  make([]*Entity, 0, len(records)),
		newRecord: func() Record { return &MemRecord{} },
	}
	for _, opt := range opts {
		opt(l)
	}
	for i, r := range records {
		l.entities = append(l.entities, newEntity(l, r, i == 0))
	}
	return l, nil
}

// NewEmptyList returns a list holding only a bare root entity.
func NewEmptyList(opts ...ListOption) *List {
	l, err := NewList([]Record{NewMemRecord(KeyClassName, RootClassName)}, opts...)
	if err != nil {
		panic("entity: building empty list: " + err.Error())
	}
	return l
}

// Root returns the root entity.
func (l *List) Root() *Entity { return l.entities[0] }

// Len returns the number of entities including the root.
func (l *List) Len() int { return len(l.entities) }

// At returns the entity at index i. It panics if i is out of range.
func (l *List) At(i int) *Entity { return l.entities[i] }

// All iterates over the entities in order. The iteration works on a snapshot,
// so the list may be modified while iterating.
func (l *List) All() iter.Seq2[int, *Entity] {
	snapshot := slices.Clone(l.entities)
	return func(yield func(int, *Entity) bool) {
		for i, e := range snapshot {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Records returns the backing records in list order.
func (l *List) Records() []Record {
	out := make([]Record, len(l.entities))
	for i, e := range l.entities {
		out[i] = e.record
	}
	return out
}

// OfClass returns a snapshot of all entities with the given classname.
func (l *List) OfClass(className string) []*Entity {
	var out []*Entity
	for _, e := range l.entities {
		if e.ClassName() == className {
			out = append(out, e)
		}
	}
	return out
}

// FindByClassName returns the first entity with the given classname, or nil.
func (l *List) FindByClassName(className string) *Entity {
	for _, e := range l.entities {
		if e.ClassName() == className {
			return e
		}
	}
	return nil
}

// FindByTargetName returns the first entity whose targetname is name, or nil.
// An empty name never matches.
func (l *List) FindByTargetName(name string) *Entity {
	if name == "" {
		return nil
	}
	for _, e := range l.entities {
		if e.TargetName() == name {
			return e
		}
	}
	return nil
}

// CreateNewEntity appends a new entity with the given classname. Creating a
// second root entity fails with [ErrValidation].
func (l *List) CreateNewEntity(className string) (*Entity, error) {
	if err := ValidateClassName(className); err != nil {
		return nil, err
	}
	if className == RootClassName {
		return nil, fmt.Errorf("%w: cannot create a second %q entity", ErrValidation, RootClassName)
	}
	return l.appendEntity(className), nil
}

// appendEntity appends a non-root entity without checking the classname
// grammar, so entities loaded from older maps can be copied as they are.
func (l *List) appendEntity(className string) *Entity {
	r := l.newRecord()
	r.Set(KeyClassName, className)
	e := newEntity(l, r, false)
	l.entities = append(l.entities, e)
	l.notify(Event{Kind: EventEntityCreated, Entity: e})
	return e
}

// CloneEntity appends a copy of src, which may belong to another list.
// Cloning the root entity fails with [ErrValidation].
func (l *List) CloneEntity(src *Entity) (*Entity, error) {
	if src.root {
		return nil, fmt.Errorf("%w: the root entity cannot be cloned", ErrValidation)
	}
	e, err := l.CreateNewEntity(src.ClassName())
	if err != nil {
		return nil, err
	}
	copyKeyValues(src, e)
	return e, nil
}

// Remove removes e from the list. Removing the root entity, or an entity
// that is not part of this list, fails with [ErrValidation].
func (l *List) Remove(e *Entity) error {
	i := l.indexOf(e)
	if i < 0 {
		return fmt.Errorf("%w: entity %s is not part of this list", ErrValidation, e)
	}
	if i == 0 {
		return fmt.Errorf("%w: the root entity cannot be removed", ErrValidation)
	}
	l.removeAt(i)
	return nil
}

// RemoveAt removes the entity at index i.
func (l *List) RemoveAt(i int) error {
	if i < 0 || i >= len(l.entities) {
		return fmt.Errorf("%w: index %d out of range [0, %d)", ErrValidation, i, len(l.entities))
	}
	if i == 0 {
		return fmt.Errorf("%w: the root entity cannot be removed", ErrValidation)
	}
	l.removeAt(i)
	return nil
}

// removeAt removes the non-root entity at index i, which must be in range.
func (l *List) removeAt(i int) {
	e := l.entities[i]
	l.notify(Event{Kind: EventEntityRemoving, Entity: e})
	l.entities = slices.Delete(l.entities, i, i+1)
	e.list = nil
}

// Clear removes all non-root entities, last first, then clears the root's
// keyvalues. The root keeps its classname.
func (l *List) Clear() {
	for i := len(l.entities) - 1; i > 0; i-- {
		l.removeAt(i)
	}
	l.Root().Clear()
}

// ReplaceWith makes l a copy of other: l is cleared, the root keyvalues of
// other are copied onto l's root, and every non-root entity of other is
// copied in order. Classnames are copied as they are, without the grammar
// check [List.CreateNewEntity] applies. Replacing a list with itself is a
// no-op.
func (l *List) ReplaceWith(other *List) error {
	if other == nil {
		return fmt.Errorf("%w: replace with nil list", ErrValidation)
	}
	if other == l {
		return nil
	}
	l.Clear()
	copyKeyValues(other.Root(), l.Root())
	for _, src := range other.entities[1:] {
		copyKeyValues(src, l.appendEntity(src.ClassName()))
	}
	return nil
}

// GenerateUniqueTargetName returns base followed by the smallest
// non-negative integer suffix that no entity uses as its targetname.
func (l *List) GenerateUniqueTargetName(base string) (string, error) {
	used := make(map[string]struct{}, len(l.entities))
	for _, e := range l.entities {
		if n := e.TargetName(); n != "" {
			used[n] = struct{}{}
		}
	}
	for i := 0; i < math.MaxInt; i++ {
		name := base + strconv.Itoa(i)
		if _, taken := used[name]; !taken {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: base %q", ErrNamesExhausted, base)
}

func (l *List) indexOf(e *Entity) int {
	if e == nil || e.list != l {
		return -1
	}
	return slices.Index(l.entities, e)
}

// copyKeyValues copies every keyvalue of src except the classname onto dst.
func copyKeyValues(src, dst *Entity) {
	for _, k := range src.record.Keys() {
		if k == KeyClassName {
			continue
		}
		v, _ := src.record.Get(k)
		dst.set(k, v)
	}
}
