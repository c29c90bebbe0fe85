// Package catalog loads data-driven upgrade rules from YAML files and
// registers them with an [upgrade.Builder].
//
// A catalog file lists upgrades by version, each with an ordered list of
// declarative rules:
//
//	upgrades:
//	  - version: 1.0.0
//	    rules:
//	      - name: default max range
//	        kind: set_key
//	        classname: worldspawn
//	        key: MaxRange
//	        value: "4096"
//	        if_missing: true
//
// Rules may be restricted to maps by base name (maps) and to a game (game).
package catalog

import (
	"errors"

	"github.com/MrWong99/mapupgrade/internal/kvyaml"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// ErrUnknownRuleKind is returned for rules whose kind is not one of the
// [RuleKind] constants.
var ErrUnknownRuleKind = errors.New("catalog: unknown rule kind")

// RuleKind selects what a declarative rule does.
type RuleKind string

const (
	// KindSetKey sets key to value on every matching entity.
	KindSetKey RuleKind = "set_key"

	// KindRemoveKey removes key from every matching entity.
	KindRemoveKey RuleKind = "remove_key"

	// KindRenameKey moves the value of key to the key named by to.
	KindRenameKey RuleKind = "rename_key"

	// KindRenameClass changes the classname of every matching entity to to.
	KindRenameClass RuleKind = "rename_class"

	// KindRemoveEntity removes every matching entity.
	KindRemoveEntity RuleKind = "remove_entity"

	// KindCreateEntity appends a new entity of classname with keyvalues.
	KindCreateEntity RuleKind = "create_entity"
)

// RuleKinds lists every valid kind in documentation order.
var RuleKinds = []RuleKind{
	KindSetKey, KindRemoveKey, KindRenameKey, KindRenameClass, KindRemoveEntity, KindCreateEntity,
}

// IsValid reports whether k is a recognised rule kind.
func (k RuleKind) IsValid() bool {
	switch k {
	case KindSetKey, KindRemoveKey, KindRenameKey, KindRenameClass, KindRemoveEntity, KindCreateEntity:
		return true
	}
	return false
}

// usesKey reports whether rules of kind k operate on a keyvalue.
func (k RuleKind) usesKey() bool {
	return k == KindSetKey || k == KindRemoveKey || k == KindRenameKey
}

// File is one decoded catalog file.
type File struct {
	// Path is the file the catalog was loaded from, if any.
	Path string `yaml:"-"`

	Upgrades []UpgradeDef `yaml:"upgrades"`
}

// UpgradeDef declares the rules of one upgrade version.
type UpgradeDef struct {
	Version string    `yaml:"version"`
	Rules   []RuleDef `yaml:"rules"`
}

// RuleDef is one declarative rule.
type RuleDef struct {
	// Name identifies the rule in logs and metrics. Default: "<kind> <classname>".
	Name string   `yaml:"name"`
	Kind RuleKind `yaml:"kind"`

	// ClassName selects the entities a rule operates on. For
	// create_entity it is the classname of the new entity.
	ClassName string `yaml:"classname"`

	// TargetName further restricts the selected entities. Ignored by
	// create_entity.
	TargetName string `yaml:"targetname"`

	Key   string `yaml:"key"`
	Value string `yaml:"value"`

	// To is the new key name for rename_key and the new classname for
	// rename_class.
	To string `yaml:"to"`

	// IfMissing makes set_key leave entities that already have key alone.
	IfMissing bool `yaml:"if_missing"`

	// KeyValues are the keyvalues of an entity made by create_entity, in
	// order.
	KeyValues kvyaml.Pairs `yaml:"keyvalues"`

	// Maps restricts the rule to maps with one of these base names.
	Maps []string `yaml:"maps"`

	// Game restricts the rule to one game.
	Game *GameFilter `yaml:"game"`
}

// GameFilter restricts a rule to one game. Game names are informational
// and not part of the match.
type GameFilter struct {
	Engine       upgrade.Engine `yaml:"engine"`
	ModDirectory string         `yaml:"mod_directory"`
}

// DisplayName returns Name, or a name derived from the kind and classname.
func (r RuleDef) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.Kind) + " " + r.ClassName
}
