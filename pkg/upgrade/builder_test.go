package upgrade_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/mapupgrade/pkg/upgrade"
)

func noop(upgrade.Context) error { return nil }

func TestBuildSortsUpgrades(t *testing.T) {
	t.Parallel()

	b := upgrade.NewBuilder()
	b.Upgrade("2.0.0").Action("b", noop)
	b.Upgrade("1.0.0").Action("a", noop)
	b.Upgrade("1.5.0")
	tool, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := tool.Upgrades()
	want := []string{"1.0.0", "1.5.0", "2.0.0"}
	if len(got) != len(want) {
		t.Fatalf("expected %d upgrades, got %d", len(want), len(got))
	}
	for i, u := range got {
		if u.Version().String() != want[i] {
			t.Errorf("upgrade %d: expected %s, got %s", i, want[i], u.Version())
		}
	}
	if tool.LatestVersion().String() != "2.0.0" {
		t.Fatalf("LatestVersion: got %s", tool.LatestVersion())
	}
	if tool.VersionKey() != upgrade.DefaultVersionKey {
		t.Fatalf("VersionKey: got %q", tool.VersionKey())
	}
}

func TestBuildEmptyCatalog(t *testing.T) {
	t.Parallel()

	tool, err := upgrade.NewBuilder().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !tool.LatestVersion().IsZero() {
		t.Fatalf("LatestVersion of empty catalog: got %s", tool.LatestVersion())
	}
}

func TestBuildConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(b *upgrade.Builder)
		opts  []upgrade.Option
	}{
		{"duplicate version", func(b *upgrade.Builder) {
			b.Upgrade("1.0.0").Action("a", noop)
			b.Upgrade("1.0.0").Action("b", noop)
		}, nil},
		{"duplicate ignoring build metadata", func(b *upgrade.Builder) {
			b.Upgrade("1.0.0+a")
			b.Upgrade("1.0.0+b")
		}, nil},
		{"malformed version", func(b *upgrade.Builder) {
			b.Upgrade("one")
		}, nil},
		{"zero version", func(b *upgrade.Builder) {
			b.Upgrade("0.0.0")
		}, nil},
		{"nil apply", func(b *upgrade.Builder) {
			b.Upgrade("1.0.0").Rule(upgrade.Rule{Name: "empty"})
		}, nil},
		{"classname as version key", func(b *upgrade.Builder) {}, []upgrade.Option{upgrade.WithVersionKey("classname")}},
		{"blank version key", func(b *upgrade.Builder) {}, []upgrade.Option{upgrade.WithVersionKey(" ")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			b := upgrade.NewBuilder(tc.opts...)
			tc.setup(b)
			if _, err := b.Build(); !errors.Is(err, upgrade.ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestBuilderSingleUse(t *testing.T) {
	t.Parallel()

	b := upgrade.NewBuilder()
	b.Upgrade("1.0.0")
	if _, err := b.Build(); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if _, err := b.Build(); !errors.Is(err, upgrade.ErrConfiguration) {
		t.Fatalf("second Build: expected ErrConfiguration, got %v", err)
	}
}

func TestUpgradeRulesAreCopied(t *testing.T) {
	t.Parallel()

	b := upgrade.NewBuilder()
	b.Upgrade("1.0.0").Action("a", noop)
	tool, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rules := tool.Upgrades()[0].Rules()
	rules[0].Name = "changed"
	if tool.Upgrades()[0].Rules()[0].Name != "a" {
		t.Fatal("mutating returned rules changed the catalog")
	}
}
