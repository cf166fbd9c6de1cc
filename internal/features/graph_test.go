package features

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/featctl/internal/metadata"
)

func TestBuildClassification(t *testing.T) {
	pkg := &metadata.Package{
		Name: "core",
		Features: map[string][]string{
			"std":  {},
			"full": {"std", "serde"},
		},
		FeatureOrder: []string{"std", "full"},
		OptionalDeps: []string{"serde", "tracing"},
	}
	deps := map[string]*metadata.Package{
		"util": {
			Name:         "util",
			Features:     map[string][]string{"alloc": {}},
			FeatureOrder: []string{"alloc"},
		},
	}

	g, err := Build(pkg, deps)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	if got := Names(g.Declared); !reflect.DeepEqual(got, []string{"std", "full"}) {
		t.Fatalf("unexpected declared flags: %v", got)
	}
	if got := Names(g.Optional); !reflect.DeepEqual(got, []string{"serde", "tracing"}) {
		t.Fatalf("unexpected optional flags: %v", got)
	}
	if got := Names(g.Reexports); !reflect.DeepEqual(got, []string{"util/alloc"}) {
		t.Fatalf("unexpected re-exports: %v", got)
	}
	if got := Names(g.Features()); !reflect.DeepEqual(got, []string{"std", "full", "serde", "tracing"}) {
		t.Fatalf("unexpected canonical list: %v", got)
	}
	if got := Names(g.WithReexports()); len(got) != 5 {
		t.Fatalf("unexpected extended list: %v", got)
	}
	if !g.HasOptionalDeps() {
		t.Fatalf("expected optional-dep backing to be reported")
	}
}

func TestBuildShadowedOptionalDep(t *testing.T) {
	// A declared flag named after an optional dep controls that dep; no
	// second implicit flag may appear.
	pkg := &metadata.Package{
		Name:         "core",
		Features:     map[string][]string{"serde": {"dep-serde"}},
		FeatureOrder: []string{"serde"},
		OptionalDeps: []string{"serde"},
	}
	g, err := Build(pkg, nil)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if len(g.Optional) != 0 {
		t.Fatalf("shadowed optional dep must not create a flag: %v", Names(g.Optional))
	}
	if got := Names(g.Features()); !reflect.DeepEqual(got, []string{"serde"}) {
		t.Fatalf("unexpected canonical list: %v", got)
	}
}

func TestBuildDuplicateFeature(t *testing.T) {
	pkg := &metadata.Package{
		Name:         "core",
		Features:     map[string][]string{"a": {}},
		FeatureOrder: []string{"a", "a"},
	}
	_, err := Build(pkg, nil)
	if !errors.Is(err, ErrDuplicateFeature) {
		t.Fatalf("expected duplicate-feature error, got %v", err)
	}
}
