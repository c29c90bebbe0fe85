// Package kvyaml maps entity keyvalues to and from YAML mappings while
// keeping their order. Plain Go maps lose the order in which keys were
// written, which would reorder keyvalues on every load/save cycle.
package kvyaml

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// Pair is one keyvalue.
type Pair struct {
	Key   string
	Value string
}

// Pairs is an ordered list of keyvalues. It decodes from and encodes to a
// YAML mapping. Scalar values of any YAML type are kept as their literal
// text, so `health: 100` yields "100".
type Pairs []Pair

// UnmarshalYAML implements [yaml.Unmarshaler].
func (p *Pairs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("kvyaml: line %d: expected a mapping of keyvalues", node.Line)
	}
	out := make(Pairs, 0, len(node.Content)/2)
	seen := make(map[string]int, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return fmt.Errorf("kvyaml: line %d: keyvalues must be scalars", k.Line)
		}
		if prev, dup := seen[k.Value]; dup {
			return fmt.Errorf("kvyaml: line %d: duplicate key %q (first on line %d)", k.Line, k.Value, prev)
		}
		seen[k.Value] = k.Line
		out = append(out, Pair{Key: k.Value, Value: v.Value})
	}
	*p = out
	return nil
}

// MarshalYAML implements [yaml.Marshaler]. Every value is emitted as a
// string so that numeric-looking text survives a round trip unchanged.
func (p Pairs) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, kv := range p {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: kv.Value},
		)
	}
	return node, nil
}

// Get returns the value of key.
func (p Pairs) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Record copies p into a new [entity.MemRecord].
func (p Pairs) Record() *entity.MemRecord {
	r := entity.NewMemRecord()
	for _, kv := range p {
		r.Set(kv.Key, kv.Value)
	}
	return r
}

// FromRecord copies the keyvalues of r in backing order.
func FromRecord(r entity.Record) Pairs {
	keys := r.Keys()
	out := make(Pairs, 0, len(keys))
	for _, k := range keys {
		v, _ := r.Get(k)
		out = append(out, Pair{Key: k, Value: v})
	}
	return out
}
