package upgrade

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/mapupgrade/pkg/entity"
)

// Upgrade is a versioned, ordered set of rules. Upgrades are immutable once
// the [Tool] holding them is built.
type Upgrade struct {
	version Version
	rules   []Rule
}

// Version returns the version this upgrade brings a map to.
func (u *Upgrade) Version() Version { return u.version }

// Rules returns a copy of the rules in registration order.
func (u *Upgrade) Rules() []Rule { return slices.Clone(u.rules) }

// Builder assembles a [Tool]. It is used once: after [Builder.Build] every
// further call is rejected.
//
//	b := upgrade.NewBuilder()
//	b.Upgrade("1.0.0").
//		Action("default max range", setMaxRange).
//		Rule(upgrade.ForMaps("fix c2a5 crate", []string{"c2a5"}, fixCrate))
//	tool, err := b.Build()
type Builder struct {
	opts     []Option
	upgrades []*UpgradeBuilder
	built    bool
}

// UpgradeBuilder collects the rules of a single upgrade.
type UpgradeBuilder struct {
	raw     string
	version Version
	err     error
	rules   []Rule
}

// NewBuilder returns an empty builder. opts are applied to the built [Tool].
func NewBuilder(opts ...Option) *Builder {
	return &Builder{opts: opts}
}

// Upgrade registers a new upgrade for version. Malformed and duplicate
// versions are reported by [Builder.Build].
func (b *Builder) Upgrade(version string) *UpgradeBuilder {
	u := &UpgradeBuilder{raw: version}
	u.version, u.err = ParseVersion(version)
	b.upgrades = append(b.upgrades, u)
	return u
}

// Action appends an unconditional rule.
func (u *UpgradeBuilder) Action(name string, fn ApplyFunc) *UpgradeBuilder {
	return u.Rule(Action(name, fn))
}

// Rule appends pre-built rules.
func (u *UpgradeBuilder) Rule(rules ...Rule) *UpgradeBuilder {
	u.rules = append(u.rules, rules...)
	return u
}

// Build validates the registrations and returns an immutable [Tool].
// Configuration problems are joined and wrap [ErrConfiguration].
func (b *Builder) Build() (*Tool, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrConfiguration)
	}
	b.built = true

	t := newTool()
	for _, opt := range b.opts {
		opt(t)
	}

	var errs []error
	if strings.TrimSpace(t.versionKey) == "" || t.versionKey == entity.KeyClassName {
		errs = append(errs, fmt.Errorf("%w: version key %q is not usable", ErrConfiguration, t.versionKey))
	}

	upgrades := make([]*Upgrade, 0, len(b.upgrades))
	for _, ub := range b.upgrades {
		if ub.err != nil {
			errs = append(errs, fmt.Errorf("%w: upgrade %q: %w", ErrConfiguration, ub.raw, ub.err))
			continue
		}
		if ub.version.Compare(Version{}) <= 0 {
			errs = append(errs, fmt.Errorf("%w: upgrade %s can never be applied; versions must be greater than 0.0.0", ErrConfiguration, ub.version))
			continue
		}
		for i, r := range ub.rules {
			if r.Apply == nil {
				errs = append(errs, fmt.Errorf("%w: upgrade %s: rule %d (%q) has no apply function", ErrConfiguration, ub.version, i, r.Name))
			}
		}
		upgrades = append(upgrades, &Upgrade{version: ub.version, rules: slices.Clone(ub.rules)})
	}

	slices.SortStableFunc(upgrades, func(a, b *Upgrade) int { return a.version.Compare(b.version) })
	for i := 1; i < len(upgrades); i++ {
		if upgrades[i-1].version.Compare(upgrades[i].version) == 0 {
			errs = append(errs, fmt.Errorf("%w: duplicate upgrade version %s (also registered as %s)",
				ErrConfiguration, upgrades[i].version, upgrades[i-1].version))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	t.upgrades = upgrades
	return t, nil
}
