package kvyaml_test

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/mapupgrade/internal/kvyaml"
	"github.com/MrWong99/mapupgrade/pkg/entity"
)

func TestUnmarshalKeepsOrder(t *testing.T) {
	t.Parallel()

	var p kvyaml.Pairs
	doc := "classname: monster_barney\ntargetname: guard\nhealth: 100\norigin: 0 0 64\n"
	if err := yaml.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := []string{"classname", "targetname", "health", "origin"}
	if len(p) != len(want) {
		t.Fatalf("got %d pairs, want %d", len(p), len(want))
	}
	for i, k := range want {
		if p[i].Key != k {
			t.Errorf("pair %d: key %q, want %q", i, p[i].Key, k)
		}
	}
	if v, _ := p.Get("health"); v != "100" {
		t.Errorf("health = %q, want literal text 100", v)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"sequence":  "- a\n- b\n",
		"nested":    "spawnflags:\n  a: 1\n",
		"duplicate": "health: 1\nhealth: 2\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var p kvyaml.Pairs
			if err := yaml.Unmarshal([]byte(doc), &p); err == nil {
				t.Fatalf("expected error for %q", doc)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	r := entity.NewMemRecord("classname", "info_target", "targetname", "007", "angle", "90")
	out, err := yaml.Marshal(kvyaml.FromRecord(r))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back kvyaml.Pairs
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	rec := back.Record()
	if strings.Join(rec.Keys(), ",") != "classname,targetname,angle" {
		t.Fatalf("key order lost: %v", rec.Keys())
	}
	if v, _ := rec.Get("targetname"); v != "007" {
		t.Errorf("targetname = %q, want 007 preserved as text", v)
	}
}
