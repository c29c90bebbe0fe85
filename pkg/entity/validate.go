package entity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrValidation is returned when a mutation would break an entity invariant:
// an invalid classname, an empty key, or any attempt to rename, create, or
// remove the root entity. The failing operation leaves all state unchanged.
var ErrValidation = errors.New("entity: validation failed")

// ErrStructural is returned by [NewList] when the source records do not form
// a valid level: no entities, a root that is not first, or several roots.
var ErrStructural = errors.New("entity: malformed entity list")

// ErrNamesExhausted is returned by [List.GenerateUniqueTargetName] when no
// numeric suffix yields an unused name.
var ErrNamesExhausted = errors.New("entity: unique name space exhausted")

const (
	// KeyClassName is the mandatory key naming an entity's class.
	KeyClassName = "classname"

	// KeyTargetName is the key holding an entity's unique name used for
	// triggering and lookups.
	KeyTargetName = "targetname"

	// RootClassName is the classname of the single root entity of a level.
	RootClassName = "worldspawn"
)

var classNamePattern = regexp.MustCompile(`^[_a-zA-Z]+\w*$`)

// ValidateClassName reports whether name is a syntactically valid classname.
// The root classname passes this check; callers decide whether it is allowed.
func ValidateClassName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: classname must not be empty", ErrValidation)
	}
	if !classNamePattern.MatchString(name) {
		return fmt.Errorf("%w: classname %q is not a valid identifier", ErrValidation, name)
	}
	return nil
}

// validateKey rejects keys that are empty or consist only of whitespace.
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key must not be empty", ErrValidation)
	}
	return nil
}
