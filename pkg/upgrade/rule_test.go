package upgrade_test

import (
	"testing"

	"github.com/MrWong99/mapupgrade/pkg/level"
	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

func TestPredicates(t *testing.T) {
	t.Parallel()

	hl := upgrade.GameInfo{Engine: upgrade.EngineGoldSource, ModDirectory: "valve"}
	c2a5 := level.New("maps/c2a5.bsp", level.CategoryCompiled, nil)
	c1a0 := level.New("maps/c1a0.bsp", level.CategoryCompiled, nil)

	both := upgrade.All(upgrade.MapIs("c2a5", "c2a6"), upgrade.GameIs(hl), nil)

	tests := []struct {
		name string
		c    upgrade.Context
		want bool
	}{
		{"map and game", upgrade.Context{Map: c2a5, Game: &hl}, true},
		{"wrong map", upgrade.Context{Map: c1a0, Game: &hl}, false},
		{"no game", upgrade.Context{Map: c2a5}, false},
		{"no map", upgrade.Context{Game: &hl}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := both(tc.c); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	if !upgrade.All()(upgrade.Context{}) {
		t.Error("All() without predicates must hold")
	}
}
