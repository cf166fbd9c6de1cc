package runner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/featctl/internal/features"
	"github.com/danmuck/featctl/internal/metadata"
)

var ErrEmptyPlan = errors.New("runner: nothing to run")

// Mode selects the per-package feature-variant axis.
type Mode int

const (
	// ModeDefault runs default flags only (plus the no-default run unless
	// excluded).
	ModeDefault Mode = iota
	// ModeEachFeature adds one run per individual flag.
	ModeEachFeature
	// ModePowerset adds one run per surviving powerset combination.
	ModePowerset
)

// Config is the explicit orchestrator configuration; nothing here lives in
// package-level state.
type Config struct {
	Mode  Mode
	Depth int

	// ExcludeNoDefault drops the defaults-disabled run.
	ExcludeNoDefault bool
	// IncludeReexports adds namespaced dep/flag features to the axis.
	IncludeReexports bool

	Exclusions   []features.ExclusionRule
	Requirements []features.RequirementRule

	// NoDevDeps strips the DevSection tables from each package's manifest
	// for the duration of its runs.
	NoDevDeps  bool
	DevSection string

	KeepGoing bool
	Partition *Partition

	// BuildCmd and Subcommand compose the driven invocation, e.g.
	// buildtool +1.60 check --features a,b --package core.
	BuildCmd   string
	Subcommand []string

	// Toolchains holds resolved identifiers; empty means the single
	// implicit toolchain. Targets empty means the host target.
	Toolchains []string
	Targets    []string

	StreamInstalls bool
}

// VariantKind tags one run's activation variant.
type VariantKind int

const (
	VariantDefault VariantKind = iota
	VariantNoDefault
	VariantAllFeatures
	VariantCombination
)

// Variant is the feature-activation half of a run record.
type Variant struct {
	Kind  VariantKind
	Combo []features.Feature
}

// Run is one planned external invocation. Immutable once built, except for
// its lifecycle State.
type Run struct {
	Package   *metadata.Package
	Variant   Variant
	Toolchain string // "" selects the implicit toolchain
	Target    string // "" is the host target
	Ordinal   int    // 0-based position in plan order

	State State
}

// Plan is the ordered run sequence, fixed before anything executes.
type Plan struct {
	Runs []Run
}

func (p *Plan) Total() int { return len(p.Runs) }

// BuildPlan expands the configured axes into the ordered run plan: one
// record per actual external invocation.
func BuildPlan(cfg Config, graphs []*features.Graph) (*Plan, error) {
	toolchains := cfg.Toolchains
	if len(toolchains) == 0 {
		toolchains = []string{""}
	}
	targets := cfg.Targets
	if len(targets) == 0 {
		targets = []string{""}
	}

	plan := &Plan{}
	for _, tc := range toolchains {
		for _, g := range graphs {
			for _, variant := range packageVariants(cfg, g) {
				for _, target := range targets {
					plan.Runs = append(plan.Runs, Run{
						Package:   g.Package,
						Variant:   variant,
						Toolchain: tc,
						Target:    target,
						Ordinal:   len(plan.Runs),
					})
				}
			}
		}
	}
	if len(plan.Runs) == 0 {
		return nil, ErrEmptyPlan
	}
	return plan, nil
}

// packageVariants produces the per-package run sequence: the default run;
// the all-features run (or the front-loaded largest combination) immediately
// after it; the defaults-disabled run unless excluded; then the enumerated
// combinations.
func packageVariants(cfg Config, g *features.Graph) []Variant {
	feats := g.Features()
	if cfg.IncludeReexports {
		feats = g.WithReexports()
	}

	combos := enumerate(cfg, g, feats)

	variants := []Variant{{Kind: VariantDefault}}

	second, combos := secondVariant(cfg, g, feats, combos)
	if second != nil {
		variants = append(variants, *second)
	}
	if !cfg.ExcludeNoDefault {
		variants = append(variants, Variant{Kind: VariantNoDefault})
	}
	for _, combo := range combos {
		variants = append(variants, Variant{Kind: VariantCombination, Combo: combo})
	}
	return variants
}

// enumerate lists the non-empty feature combinations for the configured
// mode, grouping rules applied after the dedup filter.
func enumerate(cfg Config, g *features.Graph, feats []features.Feature) [][]features.Feature {
	var combos [][]features.Feature
	switch cfg.Mode {
	case ModeEachFeature:
		for _, f := range feats {
			combos = append(combos, []features.Feature{f})
		}
	case ModePowerset:
		// Drop the leading empty combination; the default and
		// no-default runs already cover it.
		all := features.FeaturePowerset(feats, cfg.Depth, g.Package.Features)
		if len(all) > 0 {
			combos = all[1:]
		}
	}
	return features.ApplyGroupRules(combos, cfg.Exclusions, cfg.Requirements)
}

// secondVariant decides what runs immediately after the default run: the
// all-features run when some optional dependency would otherwise go
// unexercised, else — in powerset mode with several multi-flag combinations
// in play — the single largest combination, front-loaded because it is the
// one most likely to reveal flag-interaction failures.
func secondVariant(cfg Config, g *features.Graph, feats []features.Feature, combos [][]features.Feature) (*Variant, [][]features.Feature) {
	if cfg.Mode == ModeDefault {
		return nil, combos
	}
	if g.HasOptionalDeps() || len(feats) > 1 {
		if !coversOptionalDeps(g, combos) {
			return &Variant{Kind: VariantAllFeatures}, combos
		}
	}

	if cfg.Mode != ModePowerset || cfg.Depth == 1 {
		return nil, combos
	}
	largest, rest := takeLargestMultiFlag(combos)
	if largest == nil {
		return nil, combos
	}
	return &Variant{Kind: VariantCombination, Combo: largest}, rest
}

// coversOptionalDeps reports whether every optional-dependency-backed flag
// appears in at least one enumerated combination. Vacuously false for a
// package without optional dependencies, so a plain multi-flag package still
// gets its all-features run.
func coversOptionalDeps(g *features.Graph, combos [][]features.Feature) bool {
	if len(g.Package.OptionalDeps) == 0 {
		return false
	}
	active := make(map[string]bool)
	for _, combo := range combos {
		for _, f := range combo {
			for _, name := range f.AtomicNames() {
				active[name] = true
			}
		}
	}
	for _, dep := range g.Package.OptionalDeps {
		if !active[dep] {
			return false
		}
	}
	return true
}

// takeLargestMultiFlag removes and returns the largest combination, provided
// more than one multi-flag combination remains. Ties keep the earliest.
func takeLargestMultiFlag(combos [][]features.Feature) ([]features.Feature, [][]features.Feature) {
	multi := 0
	best := -1
	for i, combo := range combos {
		if len(combo) < 2 {
			continue
		}
		multi++
		if best < 0 || len(combo) > len(combos[best]) {
			best = i
		}
	}
	if multi <= 1 {
		return nil, combos
	}
	largest := combos[best]
	rest := make([][]features.Feature, 0, len(combos)-1)
	rest = append(rest, combos[:best]...)
	rest = append(rest, combos[best+1:]...)
	return largest, rest
}

// ComposeCommand renders the full argv for one run.
func ComposeCommand(cfg Config, r Run) []string {
	argv := []string{cfg.BuildCmd}
	if r.Toolchain != "" {
		argv = append(argv, "+"+r.Toolchain)
	}
	argv = append(argv, cfg.Subcommand...)
	argv = append(argv, "--package", r.Package.Name)

	switch r.Variant.Kind {
	case VariantNoDefault:
		argv = append(argv, "--no-default-features")
	case VariantAllFeatures:
		argv = append(argv, "--all-features")
	case VariantCombination:
		argv = append(argv, "--features", strings.Join(features.Names(r.Variant.Combo), ","))
	}

	if r.Target != "" {
		argv = append(argv, "--target", r.Target)
	}
	return argv
}

// CommandLine is the display form used in logs and failure reports.
func CommandLine(cfg Config, r Run) string {
	return strings.Join(ComposeCommand(cfg, r), " ")
}

// Describe summarizes a run for progress logging.
func Describe(r Run) string {
	var b strings.Builder
	b.WriteString(r.Package.Name)
	switch r.Variant.Kind {
	case VariantDefault:
		b.WriteString(" (default)")
	case VariantNoDefault:
		b.WriteString(" (no default features)")
	case VariantAllFeatures:
		b.WriteString(" (all features)")
	case VariantCombination:
		fmt.Fprintf(&b, " (features: %s)", strings.Join(features.Names(r.Variant.Combo), ","))
	}
	if r.Toolchain != "" {
		fmt.Fprintf(&b, " [%s]", r.Toolchain)
	}
	if r.Target != "" {
		fmt.Fprintf(&b, " [%s]", r.Target)
	}
	return b.String()
}
