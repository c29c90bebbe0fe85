package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/mapupgrade/internal/suggest"
	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

// LoadFile reads and validates the catalog file at path.
func LoadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse %q: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// LoadFromReader decodes a catalog from r and validates it. An empty
// document yields an empty catalog.
func LoadFromReader(r io.Reader) (*File, error) {
	c := &File{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if err := Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every upgrade and rule of c. It returns a joined error
// listing all problems found. Unknown kinds wrap [ErrUnknownRuleKind].
// Duplicate versions are left to [upgrade.Builder.Build], since they may
// span several files.
func Validate(c *File) error {
	var errs []error
	type declared struct {
		version upgrade.Version
		index   int
	}
	var seen []declared
	for i, u := range c.Upgrades {
		prefix := fmt.Sprintf("upgrades[%d]", i)
		v, err := upgrade.ParseVersion(u.Version)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.version: %w", prefix, err))
		} else {
			// Build metadata does not count: 1.0.0 and 1.0.0+b7 clash.
			j := slices.IndexFunc(seen, func(d declared) bool { return d.version.Compare(v) == 0 })
			if j >= 0 {
				errs = append(errs, fmt.Errorf("%s.version: %w: version %s already declared by upgrades[%d]",
					prefix, upgrade.ErrConfiguration, v, seen[j].index))
			} else {
				seen = append(seen, declared{v, i})
			}
		}
		for j, r := range u.Rules {
			errs = append(errs, validateRule(fmt.Sprintf("%s.rules[%d]", prefix, j), r)...)
		}
	}
	return errors.Join(errs...)
}

func validateRule(prefix string, r RuleDef) []error {
	var errs []error
	if !r.Kind.IsValid() {
		kinds := make([]string, len(RuleKinds))
		for i, k := range RuleKinds {
			kinds[i] = string(k)
		}
		return append(errs, fmt.Errorf("%s.kind: %w %q%s", prefix, ErrUnknownRuleKind, r.Kind, suggest.Hint(string(r.Kind), kinds)))
	}

	if r.ClassName == "" {
		errs = append(errs, fmt.Errorf("%s.classname is required", prefix))
	} else if err := entity.ValidateClassName(r.ClassName); err != nil {
		errs = append(errs, fmt.Errorf("%s.classname: %w", prefix, err))
	}

	if r.Kind.usesKey() {
		switch {
		case strings.TrimSpace(r.Key) == "":
			errs = append(errs, fmt.Errorf("%s.key is required for %s", prefix, r.Kind))
		case r.Key == entity.KeyClassName:
			errs = append(errs, fmt.Errorf("%s.key must not be %q; use rename_class", prefix, entity.KeyClassName))
		}
	}

	switch r.Kind {
	case KindRenameKey:
		switch {
		case strings.TrimSpace(r.To) == "":
			errs = append(errs, fmt.Errorf("%s.to is required for %s", prefix, r.Kind))
		case r.To == entity.KeyClassName:
			errs = append(errs, fmt.Errorf("%s.to must not be %q", prefix, entity.KeyClassName))
		}
	case KindRenameClass:
		if err := entity.ValidateClassName(r.To); err != nil {
			errs = append(errs, fmt.Errorf("%s.to: %w", prefix, err))
		} else if r.To == entity.RootClassName {
			errs = append(errs, fmt.Errorf("%s.to must not be %q", prefix, entity.RootClassName))
		}
		if r.ClassName == entity.RootClassName {
			errs = append(errs, fmt.Errorf("%s: the %s entity cannot be renamed", prefix, entity.RootClassName))
		}
	case KindRemoveEntity:
		if r.ClassName == entity.RootClassName {
			errs = append(errs, fmt.Errorf("%s: the %s entity cannot be removed", prefix, entity.RootClassName))
		}
	case KindCreateEntity:
		if r.ClassName == entity.RootClassName {
			errs = append(errs, fmt.Errorf("%s: a second %s entity cannot be created", prefix, entity.RootClassName))
		}
		for _, kv := range r.KeyValues {
			if kv.Key == entity.KeyClassName || strings.TrimSpace(kv.Key) == "" {
				errs = append(errs, fmt.Errorf("%s.keyvalues: invalid key %q", prefix, kv.Key))
			}
		}
	}

	if g := r.Game; g != nil {
		if !g.Engine.IsValid() {
			errs = append(errs, fmt.Errorf("%s.game.engine %q is invalid; valid values: goldsource, source, xash3d", prefix, g.Engine))
		}
		if strings.TrimSpace(g.ModDirectory) == "" {
			errs = append(errs, fmt.Errorf("%s.game.mod_directory is required", prefix))
		}
	}
	return errs
}
