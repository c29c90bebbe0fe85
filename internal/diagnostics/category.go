// Package diagnostics observes entity lists during upgrade runs. [Logger]
// writes every creation, mutation, and removal to a [slog.Logger]; [Recorder]
// collects the same information as [Change] records for audits and dry runs.
//
// Observers only read events. Attaching or detaching them never changes the
// observed map.
package diagnostics

import (
	"fmt"
	"strings"

	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// Category is a bit set of event categories.
type Category uint32

const (
	CategoryEntityCreated Category = 1 << iota
	CategoryEntityRemoved
	CategoryKeyValueAdded
	CategoryKeyValueChanged
	CategoryKeyValueRemoved
	CategoryKeyValuesCleared

	CategoryNone Category = 0
	CategoryAll           = CategoryEntityCreated | CategoryEntityRemoved | CategoryKeyValueAdded |
		CategoryKeyValueChanged | CategoryKeyValueRemoved | CategoryKeyValuesCleared
)

var categoryNames = []struct {
	c    Category
	name string
}{
	{CategoryEntityCreated, "entity_created"},
	{CategoryEntityRemoved, "entity_removed"},
	{CategoryKeyValueAdded, "keyvalue_added"},
	{CategoryKeyValueChanged, "keyvalue_changed"},
	{CategoryKeyValueRemoved, "keyvalue_removed"},
	{CategoryKeyValuesCleared, "keyvalues_cleared"},
}

// CategoryNames returns the names accepted by [ParseCategory].
func CategoryNames() []string {
	out := make([]string, 0, len(categoryNames)+1)
	for _, cn := range categoryNames {
		out = append(out, cn.name)
	}
	return append(out, "all")
}

// ParseCategory returns the category with the given name. "all" selects
// every category.
func ParseCategory(name string) (Category, error) {
	if name == "all" {
		return CategoryAll, nil
	}
	for _, cn := range categoryNames {
		if cn.name == name {
			return cn.c, nil
		}
	}
	return 0, fmt.Errorf("diagnostics: unknown category %q", name)
}

// Has reports whether every bit of o is set in c.
func (c Category) Has(o Category) bool { return o != 0 && c&o == o }

func (c Category) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	for _, cn := range categoryNames {
		if c&cn.c != 0 {
			parts = append(parts, cn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Classify maps an entity event to its category. Keyvalue change events
// are split into "added" and "changed" depending on whether a previous value
// existed.
func Classify(ev entity.Event) Category {
	switch ev.Kind {
	case entity.EventEntityCreated:
		return CategoryEntityCreated
	case entity.EventEntityRemoving:
		return CategoryEntityRemoved
	case entity.EventKeyValueChanged:
		if ev.HadPrevious {
			return CategoryKeyValueChanged
		}
		return CategoryKeyValueAdded
	case entity.EventKeyValueRemoving:
		return CategoryKeyValueRemoved
	case entity.EventKeyValuesClearing:
		return CategoryKeyValuesCleared
	}
	return CategoryNone
}

// Config selects what an observer reports.
type Config struct {
	// Categories is the set of reported categories.
	Categories Category

	// IgnoreKeys lists keys whose keyvalue events are never reported,
	// whatever their category.
	IgnoreKeys []string
}

// filter applies a [Config] to events.
type filter struct {
	categories Category
	ignore     map[string]struct{}
}

func newFilter(cfg Config) filter {
	f := filter{categories: cfg.Categories, ignore: make(map[string]struct{}, len(cfg.IgnoreKeys))}
	for _, k := range cfg.IgnoreKeys {
		f.ignore[k] = struct{}{}
	}
	return f
}

// accept returns the category of ev and whether it passes the filter.
func (f filter) accept(ev entity.Event) (Category, bool) {
	c := Classify(ev)
	if !f.categories.Has(c) {
		return c, false
	}
	if ev.Key != "" {
		if _, ignored := f.ignore[ev.Key]; ignored {
			return c, false
		}
	}
	return c, true
}
