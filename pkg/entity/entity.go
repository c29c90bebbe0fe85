// Package entity provides the mutable entity model of a game level.
//
// A level is an ordered [List] of [Entity] values, each a bag of string
// keyvalues with a mandatory classname. The first entity of every list is the
// root entity ("worldspawn") which carries map-global properties and is
// protected against renaming, removal, and duplication.
//
// Every mutation is written through to the entity's backing [Record] and is
// announced to the listeners subscribed on the owning list (see [Event]).
//
// Nothing in this package is safe for concurrent use; a list and its entities
// belong to exactly one goroutine at a time.
package entity

import (
	"fmt"
)

// Entity is a single level object. Entities are created by [NewList] when a
// level is loaded or by [List.CreateNewEntity]; they are never constructed
// directly.
type Entity struct {
	list   *List
	record Record
	cache  map[string]string
	root   bool
}

func newEntity(list *List, record Record, root bool) *Entity {
	e := &Entity{
		list:   list,
		record: record,
		cache:  make(map[string]string),
		root:   root,
	}
	for _, k := range record.Keys() {
		if v, ok := record.Get(k); ok {
			e.cache[k] = v
		}
	}
	return e
}

// IsRoot reports whether e is the root entity of its level.
func (e *Entity) IsRoot() bool { return e.root }

// ClassName returns the entity's classname.
func (e *Entity) ClassName() string { return e.cache[KeyClassName] }

// TargetName returns the entity's targetname or "" if it has none.
func (e *Entity) TargetName() string { return e.cache[KeyTargetName] }

// Len returns the number of keyvalues including the classname.
func (e *Entity) Len() int { return len(e.cache) }

// Has reports whether key is set on e.
func (e *Entity) Has(key string) bool {
	_, ok := e.cache[key]
	return ok
}

// Keys returns the entity's keys in backing-store order.
func (e *Entity) Keys() []string { return e.record.Keys() }

// Record returns the backing record. Callers must not mutate it directly.
func (e *Entity) Record() Record { return e.record }

// List returns the owning list, or nil once e has been removed.
func (e *Entity) List() *List { return e.list }

// Index returns e's position in its owning list, or -1 if it was removed.
func (e *Entity) Index() int {
	if e.list == nil {
		return -1
	}
	return e.list.indexOf(e)
}

// Lookup returns the raw value stored under key.
func (e *Entity) Lookup(key string) (string, bool) {
	v, ok := e.cache[key]
	return v, ok
}

// SetString stores value under key.
//
// Setting the classname is subject to the entity invariants: the value must
// be a valid identifier, the root entity cannot be renamed, and no other
// entity may be renamed to the root classname. All failures wrap
// [ErrValidation] and leave e untouched.
func (e *Entity) SetString(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if key == KeyClassName {
		if err := ValidateClassName(value); err != nil {
			return err
		}
		if e.root {
			return fmt.Errorf("%w: the classname of the root entity cannot be changed", ErrValidation)
		}
		if value == RootClassName {
			return fmt.Errorf("%w: cannot rename an entity to %q", ErrValidation, RootClassName)
		}
	}
	e.set(key, value)
	return nil
}

// set writes through to the record and the cache and notifies the list.
func (e *Entity) set(key, value string) {
	prev, had := e.cache[key]
	e.record.Set(key, value)
	e.cache[key] = value
	e.list.notify(Event{
		Kind:        EventKeyValueChanged,
		Entity:      e,
		Key:         key,
		Value:       value,
		Previous:    prev,
		HadPrevious: had,
	})
}

// Remove deletes key from e. Removing the classname fails with
// [ErrValidation]; removing a missing key is a no-op.
func (e *Entity) Remove(key string) error {
	if key == KeyClassName {
		return fmt.Errorf("%w: the classname key cannot be removed", ErrValidation)
	}
	v, ok := e.cache[key]
	if !ok {
		return nil
	}
	e.list.notify(Event{Kind: EventKeyValueRemoving, Entity: e, Key: key, Value: v})
	e.record.Delete(key)
	delete(e.cache, key)
	return nil
}

// Clear removes every keyvalue except the classname.
func (e *Entity) Clear() {
	e.list.notify(Event{Kind: EventKeyValuesClearing, Entity: e})
	for _, k := range e.record.Keys() {
		if k == KeyClassName {
			continue
		}
		e.record.Delete(k)
		delete(e.cache, k)
	}
}

func (e *Entity) String() string {
	if name := e.TargetName(); name != "" {
		return fmt.Sprintf("%s(%s)", e.ClassName(), name)
	}
	return e.ClassName()
}
