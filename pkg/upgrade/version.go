package upgrade

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a semantic version (MAJOR.MINOR.PATCH[-prerelease][+build]).
// The zero value is version 0.0.0. Build metadata is kept for display but
// ignored by comparisons.
type Version struct {
	raw string
}

// ParseVersion parses s as a full semantic version. A leading "v", missing
// components, and anything else outside the semver grammar wrap
// [ErrVersionFormat].
func ParseVersion(s string) (Version, error) {
	if !semver.IsValid("v" + s) {
		return Version{}, fmt.Errorf("%w: %q", ErrVersionFormat, s)
	}
	core := s
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	// x/mod/semver also accepts the "v1" and "v1.2" shorthands.
	if strings.Count(core, ".") != 2 {
		return Version{}, fmt.Errorf("%w: %q must have MAJOR.MINOR.PATCH components", ErrVersionFormat, s)
	}
	return Version{raw: s}, nil
}

// MustParseVersion is like [ParseVersion] but panics on error. It is meant
// for version literals in rule catalogs.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as written, or "0.0.0" for the zero value.
func (v Version) String() string {
	if v.raw == "" {
		return "0.0.0"
	}
	return v.raw
}

// IsZero reports whether v has precedence equal to 0.0.0.
func (v Version) IsZero() bool { return v.Compare(Version{}) == 0 }

// Compare returns -1, 0, or +1 depending on the semver precedence of v
// relative to w.
func (v Version) Compare(w Version) int {
	return semver.Compare(v.canonical(), w.canonical())
}

// Less reports whether v precedes w.
func (v Version) Less(w Version) bool { return v.Compare(w) < 0 }

func (v Version) canonical() string {
	return "v" + v.String()
}
