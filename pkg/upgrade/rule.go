package upgrade

import "slices"

// ApplyFunc mutates c.Map. A returned error aborts the run and is passed to
// the caller unchanged.
type ApplyFunc func(c Context) error

// Predicate decides whether a rule fires for a given run.
type Predicate func(c Context) bool

// Rule is one unit of change inside an [Upgrade]. A nil Predicate always
// fires.
type Rule struct {
	// Name identifies the rule in logs, traces, and metrics.
	Name string

	Predicate Predicate
	Apply     ApplyFunc
}

// Action returns an unconditional rule.
func Action(name string, fn ApplyFunc) Rule {
	return Rule{Name: name, Apply: fn}
}

// ForMaps returns a rule that only fires for maps whose base name is one of
// names.
func ForMaps(name string, names []string, fn ApplyFunc) Rule {
	return Rule{Name: name, Predicate: MapIs(names...), Apply: fn}
}

// ForGame returns a rule that only fires when the run's game equals game.
// Runs without a game never match.
func ForGame(name string, game GameInfo, fn ApplyFunc) Rule {
	return Rule{Name: name, Predicate: GameIs(game), Apply: fn}
}

// MapIs holds when the base name of the run's map is one of names.
func MapIs(names ...string) Predicate {
	set := slices.Clone(names)
	return func(c Context) bool {
		return c.Map != nil && slices.Contains(set, c.Map.BaseName())
	}
}

// GameIs holds when the run's game equals game.
func GameIs(game GameInfo) Predicate {
	return func(c Context) bool {
		return c.Game != nil && c.Game.Equal(game)
	}
}

// When returns a rule gated by an arbitrary predicate.
func When(name string, pred Predicate, fn ApplyFunc) Rule {
	return Rule{Name: name, Predicate: pred, Apply: fn}
}

// All combines predicates; the result holds when every predicate holds.
func All(preds ...Predicate) Predicate {
	return func(c Context) bool {
		for _, p := range preds {
			if p != nil && !p(c) {
				return false
			}
		}
		return true
	}
}

func (r Rule) matches(c Context) bool {
	return r.Predicate == nil || r.Predicate(c)
}
