package features

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/featctl/internal/metadata"
)

var ErrDuplicateFeature = errors.New("features: duplicate feature name")

// Graph is the normalized per-package feature view the planner consumes.
type Graph struct {
	Package *metadata.Package

	// Declared holds the package's own [features] flags in declaration
	// order.
	Declared []Feature
	// Optional holds flags implicitly created by optional dependencies
	// that no declared flag shadows.
	Optional []Feature
	// Reexports holds dep/flag references into the feature graphs of
	// workspace-local dependency packages.
	Reexports []Feature
}

// Build classifies pkg's flags. deps maps dependency package names to their
// metadata for the namespaced re-export view; it may be nil.
func Build(pkg *metadata.Package, deps map[string]*metadata.Package) (*Graph, error) {
	g := &Graph{Package: pkg}

	seen := make(map[string]bool, len(pkg.FeatureOrder))
	for _, name := range pkg.FeatureOrder {
		if seen[name] {
			return nil, fmt.Errorf("%w: %s in package %s", ErrDuplicateFeature, name, pkg.Name)
		}
		seen[name] = true
		g.Declared = append(g.Declared, Normal(name))
	}

	for _, dep := range pkg.OptionalDeps {
		if seen[dep] {
			// A declared flag of the same name controls the optional
			// dependency; no separate implicit flag exists.
			continue
		}
		seen[dep] = true
		g.Optional = append(g.Optional, Normal(dep))
	}

	depNames := make([]string, 0, len(deps))
	for name := range deps {
		depNames = append(depNames, name)
	}
	sort.Strings(depNames)
	for _, depName := range depNames {
		for _, flag := range deps[depName].FeatureOrder {
			ref := PathRef(depName, flag)
			if seen[ref.Name] {
				return nil, fmt.Errorf("%w: %s in package %s", ErrDuplicateFeature, ref.Name, pkg.Name)
			}
			seen[ref.Name] = true
			g.Reexports = append(g.Reexports, ref)
		}
	}

	return g, nil
}

// Features returns the canonical activation candidates: declared flags then
// optional-dependency flags. Re-exported dependency flags are opt-in via
// WithReexports.
func (g *Graph) Features() []Feature {
	out := make([]Feature, 0, len(g.Declared)+len(g.Optional))
	out = append(out, g.Declared...)
	return append(out, g.Optional...)
}

// WithReexports returns Features plus the namespaced dependency flags.
func (g *Graph) WithReexports() []Feature {
	return append(g.Features(), g.Reexports...)
}

// HasOptionalDeps reports whether any flag is backed by an optional
// dependency; the planner's all-features rule keys off this.
func (g *Graph) HasOptionalDeps() bool {
	return len(g.Package.OptionalDeps) > 0
}
