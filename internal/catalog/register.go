package catalog

import (
	"fmt"

	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// Register adds the upgrades of files to b in file order. Every entry
// registers its own upgrade, so a version declared twice, in one file or
// across files, makes [upgrade.Builder.Build] fail with
// [upgrade.ErrConfiguration].
func Register(b *upgrade.Builder, files ...*File) {
	for _, f := range files {
		for _, u := range f.Upgrades {
			ub := b.Upgrade(u.Version)
			for _, def := range u.Rules {
				ub.Rule(Compile(def))
			}
		}
	}
}

// Compile turns a validated rule definition into an [upgrade.Rule].
func Compile(def RuleDef) upgrade.Rule {
	var preds []upgrade.Predicate
	if len(def.Maps) > 0 {
		preds = append(preds, upgrade.MapIs(def.Maps...))
	}
	if g := def.Game; g != nil {
		preds = append(preds, upgrade.GameIs(upgrade.GameInfo{Engine: g.Engine, ModDirectory: g.ModDirectory}))
	}
	r := upgrade.Rule{Name: def.DisplayName(), Apply: applyFunc(def)}
	if len(preds) > 0 {
		r.Predicate = upgrade.All(preds...)
	}
	return r
}

func applyFunc(def RuleDef) upgrade.ApplyFunc {
	switch def.Kind {
	case KindSetKey:
		return eachMatch(def, func(e *entity.Entity) error {
			if cur, ok := e.Lookup(def.Key); ok && (def.IfMissing || cur == def.Value) {
				return nil
			}
			return e.SetString(def.Key, def.Value)
		})
	case KindRemoveKey:
		return eachMatch(def, func(e *entity.Entity) error {
			return e.Remove(def.Key)
		})
	case KindRenameKey:
		return eachMatch(def, func(e *entity.Entity) error {
			v, ok := e.Lookup(def.Key)
			if !ok {
				return nil
			}
			if err := e.Remove(def.Key); err != nil {
				return err
			}
			return e.SetString(def.To, v)
		})
	case KindRenameClass:
		return eachMatch(def, func(e *entity.Entity) error {
			return e.SetString(entity.KeyClassName, def.To)
		})
	case KindRemoveEntity:
		return eachMatch(def, func(e *entity.Entity) error {
			return e.List().Remove(e)
		})
	case KindCreateEntity:
		return func(c upgrade.Context) error {
			e, err := c.Entities.CreateNewEntity(def.ClassName)
			if err != nil {
				return fmt.Errorf("catalog: rule %q: %w", def.DisplayName(), err)
			}
			for _, kv := range def.KeyValues {
				if err := e.SetString(kv.Key, kv.Value); err != nil {
					return fmt.Errorf("catalog: rule %q: %w", def.DisplayName(), err)
				}
			}
			return nil
		}
	}
	return func(upgrade.Context) error {
		return fmt.Errorf("%w %q", ErrUnknownRuleKind, def.Kind)
	}
}

// eachMatch applies fn to a snapshot of the entities selected by def.
func eachMatch(def RuleDef, fn func(e *entity.Entity) error) upgrade.ApplyFunc {
	return func(c upgrade.Context) error {
		var n int
		for _, e := range c.Entities.OfClass(def.ClassName) {
			if def.TargetName != "" && e.TargetName() != def.TargetName {
				continue
			}
			if err := fn(e); err != nil {
				return fmt.Errorf("catalog: rule %q: entity %d: %w", def.DisplayName(), e.Index(), err)
			}
			n++
		}
		if c.Logger != nil {
			c.Logger.Debug("catalog rule applied", "rule", def.DisplayName(), "kind", string(def.Kind), "entities", n)
		}
		return nil
	}
}
