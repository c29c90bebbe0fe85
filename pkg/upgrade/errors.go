package upgrade

import "errors"

// ErrConfiguration is returned by [Builder.Build] when the catalog is
// inconsistent, most notably when two upgrades share a version.
var ErrConfiguration = errors.New("upgrade: invalid catalog configuration")

// ErrVersionFormat is returned when a version string is not a valid semantic
// version, including a malformed version stored in a map.
var ErrVersionFormat = errors.New("upgrade: malformed version")

// ErrTooOldVersion is returned in strict mode when the requested start
// version precedes the version recorded in the map.
var ErrTooOldVersion = errors.New("upgrade: start version is older than the map's version")

// ErrInvalidCommand is returned when a [Command] lacks required fields.
var ErrInvalidCommand = errors.New("upgrade: invalid command")
