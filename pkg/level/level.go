// Package level provides the [Map] façade: one loaded level file with its
// metadata and lazily constructed entity list.
//
// Reading and writing level files is left to map stores (see
// internal/mapstore); a Map only needs the ordered entity records they
// produce.
package level

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// Category distinguishes editor source files from compiled levels.
type Category int

const (
	// CategorySource is an editor file; brush entities own their brushes.
	CategorySource Category = iota

	// CategoryCompiled is a compiled level; brush entities reference their
	// geometry through an inline brush-model index ("model" "*N").
	CategoryCompiled
)

func (c Category) String() string {
	switch c {
	case CategorySource:
		return "source"
	case CategoryCompiled:
		return "compiled"
	}
	return "unknown"
}

// ParseCategory converts "source" or "compiled" to a [Category].
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(s) {
	case "source", "":
		return CategorySource, nil
	case "compiled":
		return CategoryCompiled, nil
	}
	return 0, fmt.Errorf("level: unknown category %q", s)
}

// Map is a single level. It is not safe for concurrent use and never shares
// its entity list with another Map.
type Map struct {
	// Filename is the path the map was loaded from or will be saved to.
	Filename string

	// Category records whether the map is a source or compiled level.
	Category Category

	records  []entity.Record
	entities *entity.List
	listOpts []entity.ListOption
}

// New returns a Map over records. The entity list is built on the first call
// to [Map.Entities].
func New(filename string, category Category, records []entity.Record, opts ...entity.ListOption) *Map {
	return &Map{
		Filename: filename,
		Category: category,
		records:  records,
		listOpts: opts,
	}
}

// BaseName returns the filename without directory and extension, e.g.
// "c1a0" for "maps/c1a0.bsp".
func (m *Map) BaseName() string {
	base := filepath.Base(m.Filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Entities returns the map's entity list, validating the records on first
// use. A structural error is returned on every call until the map is fixed.
func (m *Map) Entities() (*entity.List, error) {
	if m.entities != nil {
		return m.entities, nil
	}
	l, err := entity.NewList(m.records, m.listOpts...)
	if err != nil {
		return nil, fmt.Errorf("level: load entities of %q: %w", m.Filename, err)
	}
	m.entities = l
	return l, nil
}

// Records returns the current entity records in order, suitable for
// serialisation.
func (m *Map) Records() []entity.Record {
	if m.entities != nil {
		return m.entities.Records()
	}
	return m.records
}

// Clone returns a deep copy of m whose entities can be mutated without
// affecting m. Listeners are not copied.
func (m *Map) Clone() *Map {
	src := m.Records()
	records := make([]entity.Record, len(src))
	for i, r := range src {
		records[i] = entity.CopyRecord(r)
	}
	return New(m.Filename, m.Category, records, m.listOpts...)
}

// Commit replaces m's entities with those of other, typically a clone that
// was modified successfully. Listeners on m observe the replacement.
// Entities previously obtained from m are detached afterwards.
func (m *Map) Commit(other *Map) error {
	dst, err := m.Entities()
	if err != nil {
		return err
	}
	src, err := other.Entities()
	if err != nil {
		return err
	}
	if err := dst.ReplaceWith(src); err != nil {
		return fmt.Errorf("level: commit %q: %w", m.Filename, err)
	}
	return nil
}

// BrushModelIndex returns the inline brush-model index of e for compiled
// maps ("model" "*12" yields 12).
func BrushModelIndex(e *entity.Entity) (int, bool) {
	v, ok := e.Lookup("model")
	if !ok || !strings.HasPrefix(v, "*") {
		return 0, false
	}
	n, err := strconv.Atoi(v[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
