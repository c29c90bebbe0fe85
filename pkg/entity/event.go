package entity

import "slices"

// EventKind identifies the mutation an [Event] describes.
type EventKind int

const (
	// EventEntityCreated fires after an entity was appended to a list.
	EventEntityCreated EventKind = iota + 1

	// EventEntityRemoving fires before an entity is removed from a list.
	EventEntityRemoving

	// EventKeyValueChanged fires after a keyvalue was added or updated.
	// [Event.HadPrevious] distinguishes the two cases.
	EventKeyValueChanged

	// EventKeyValueRemoving fires before a single keyvalue is removed.
	EventKeyValueRemoving

	// EventKeyValuesClearing fires before all non-classname keyvalues of an
	// entity are removed.
	EventKeyValuesClearing
)

func (k EventKind) String() string {
	switch k {
	case EventEntityCreated:
		return "entity_created"
	case EventEntityRemoving:
		return "entity_removing"
	case EventKeyValueChanged:
		return "keyvalue_changed"
	case EventKeyValueRemoving:
		return "keyvalue_removing"
	case EventKeyValuesClearing:
		return "keyvalues_clearing"
	}
	return "unknown"
}

// Event describes a single mutation of an entity list. Events are delivered
// synchronously on the goroutine performing the mutation.
type Event struct {
	Kind   EventKind
	Entity *Entity

	// Key is set for keyvalue events.
	Key string

	// Value is the new value for EventKeyValueChanged and the value about to
	// be removed for EventKeyValueRemoving.
	Value string

	// Previous holds the old value when HadPrevious is true.
	Previous    string
	HadPrevious bool
}

// Listener receives the events of every list it is subscribed to.
// Listeners must not mutate the list from within HandleEntityEvent.
type Listener interface {
	HandleEntityEvent(Event)
}

// Subscribe adds l to the list's listeners. Subscribing the same listener
// twice has no effect. l must be a comparable value (typically a pointer).
func (l *List) Subscribe(lis Listener) {
	if slices.Contains(l.listeners, lis) {
		return
	}
	l.listeners = append(l.listeners, lis)
}

// Unsubscribe removes lis. Unsubscribing an unknown listener is a no-op.
func (l *List) Unsubscribe(lis Listener) {
	if i := slices.Index(l.listeners, lis); i >= 0 {
		l.listeners = slices.Delete(l.listeners, i, i+1)
	}
}

func (l *List) notify(ev Event) {
	if l == nil || len(l.listeners) == 0 {
		return
	}
	for _, lis := range slices.Clone(l.listeners) {
		lis.HandleEntityEvent(ev)
	}
}
