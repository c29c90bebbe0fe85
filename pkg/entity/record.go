package entity

import "slices"

// Record is the backing store of a single entity. It is owned by the map
// format that produced it (a compiled entity lump, a YAML document, ...) and
// is wrapped by an [Entity] which keeps a lookup cache in sync with it.
//
// Keys are case-sensitive. Implementations do not need to be safe for
// concurrent use.
type Record interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool)

	// Set stores value under key, adding the key if it does not exist.
	Set(key, value string)

	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key string)

	// Keys returns all keys in storage order.
	Keys() []string
}

// Compile-time assertion that MemRecord satisfies the Record interface.
var _ Record = (*MemRecord)(nil)

// MemRecord is an insertion-ordered, in-memory [Record]. Codecs use it so
// that re-serialised files keep the original key order.
// The zero value is ready to use.
type MemRecord struct {
	keys   []string
	values map[string]string
}

// NewMemRecord returns a [MemRecord] populated from alternating key/value
// arguments. It panics if pairs has an odd length.
func NewMemRecord(pairs ...string) *MemRecord {
	if len(pairs)%2 != 0 {
		panic("entity: NewMemRecord called with an odd number of arguments")
	}
	r := &MemRecord{values: make(map[string]string, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// CopyRecord returns a detached [MemRecord] holding the same keyvalues as src
// in the same order.
func CopyRecord(src Record) *MemRecord {
	dst := &MemRecord{}
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
	return dst
}

// Get implements [Record.Get].
func (r *MemRecord) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set implements [Record.Set].
func (r *MemRecord) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Delete implements [Record.Delete].
func (r *MemRecord) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	if i := slices.Index(r.keys, key); i >= 0 {
		r.keys = slices.Delete(r.keys, i, i+1)
	}
}

// Keys implements [Record.Keys].
func (r *MemRecord) Keys() []string {
	return slices.Clone(r.keys)
}
