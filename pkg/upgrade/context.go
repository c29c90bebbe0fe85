package upgrade

import (
	"log/slog"

	"github.com/MrWong99/mapupgrade/pkg/entity"
	"github.com/MrWong99/mapupgrade/pkg/level"
)

// Context is the payload handed to every rule. A fresh Context is built for
// each upgrade in a run; rules share the Map, not the Context.
type Context struct {
	Tool *Tool

	// From and To are the effective bounds of the run.
	From Version
	To   Version

	// Original is the version stored in the map before the run. It differs
	// from From when the caller overrides the start version.
	Original Version

	// Upgrade is the upgrade currently executing.
	Upgrade *Upgrade

	Map      *level.Map
	Entities *entity.List

	// Game is nil when the caller did not identify the game.
	Game *GameInfo

	Logger *slog.Logger
}
