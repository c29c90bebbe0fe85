package upgrade

// Engine identifies the game engine a map targets.
type Engine string

const (
	EngineGoldSource Engine = "goldsource"
	EngineSource     Engine = "source"
	EngineXash3D     Engine = "xash3d"
)

// IsValid reports whether e is a recognised engine.
func (e Engine) IsValid() bool {
	switch e {
	case EngineGoldSource, EngineSource, EngineXash3D:
		return true
	}
	return false
}

// GameInfo identifies the game a map belongs to. It is supplied per run and
// only consulted by game-filtered rules.
type GameInfo struct {
	Engine Engine

	// Name is the display name. It does not take part in [GameInfo.Equal].
	Name string

	// ModDirectory is the game's content directory, e.g. "valve".
	ModDirectory string
}

// Equal reports whether g and o denote the same game: same engine and same
// mod directory.
func (g GameInfo) Equal(o GameInfo) bool {
	return g.Engine == o.Engine && g.ModDirectory == o.ModDirectory
}

func (g GameInfo) String() string {
	if g.Name != "" {
		return g.Name + " (" + string(g.Engine) + "/" + g.ModDirectory + ")"
	}
	return string(g.Engine) + "/" + g.ModDirectory
}
