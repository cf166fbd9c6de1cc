package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/danmuck/featctl/internal/features"
	"github.com/danmuck/featctl/internal/logging"
	"github.com/danmuck/featctl/internal/manifest"
	"github.com/danmuck/featctl/internal/metadata"
	"github.com/danmuck/featctl/internal/runner"
	"github.com/danmuck/featctl/internal/toolchain"
	"github.com/danmuck/featctl/internal/tools"
)

type options struct {
	ManifestPath  string   `long:"manifest-path" default:"Manifest.toml" description:"workspace-root manifest"`
	Packages      []string `short:"p" long:"package" description:"restrict to these packages (repeatable)"`
	IgnorePrivate bool     `long:"ignore-private" description:"skip packages marked publish = false"`

	EachFeature     bool `long:"each-feature" description:"run once per individual feature flag"`
	FeaturePowerset bool `long:"feature-powerset" description:"run once per feature combination"`
	Depth           int  `long:"depth" description:"bound powerset combinations to this size"`

	IncludeDepsFeatures bool     `long:"include-deps-features" description:"add dep/flag features of workspace dependencies"`
	ExcludeNoDefault    bool     `long:"exclude-no-default-features" description:"skip the defaults-disabled run"`
	MutuallyExclusive   []string `long:"mutually-exclusive-features" description:"comma-joined flags that never combine (repeatable)"`
	AtLeastOneOf        []string `long:"at-least-one-of" description:"comma-joined flags of which one must be active (repeatable)"`

	NoDevDeps bool   `long:"no-dev-deps" description:"strip development dependencies while running"`
	KeepGoing bool   `long:"keep-going" description:"record failures and continue with the remaining plan"`
	Partition string `long:"partition" description:"execute shard m of n (m/n)"`

	VersionRange string   `long:"version-range" description:"toolchain range, e.g. 1.56..1.70, msrv..stable"`
	VersionStep  int      `long:"version-step" default:"1" description:"minor-version stride through the range"`
	Targets      []string `long:"target" description:"build for this target (repeatable)"`

	StreamInstalls bool   `long:"stream-installs" description:"show toolchain install output live"`
	Config         string `long:"config" description:"path to featctl.toml"`
	LogLevel       string `long:"log-level" description:"trace|debug|info|warn|error"`
	NoColor        bool   `long:"no-color" description:"disable colored output"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(flagErr.Message)
			return
		}
		fmt.Fprintf(os.Stderr, "featctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Usage = "[OPTIONS] -- <build subcommand and args>"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}

	cfg := defaultToolConfig()
	if opts.Config != "" {
		if cfg, err = loadToolConfig(opts.Config, cfg); err != nil {
			return err
		}
	} else if _, statErr := os.Stat("featctl.toml"); statErr == nil {
		if cfg, err = loadToolConfig("featctl.toml", cfg); err != nil {
			return err
		}
	}
	if len(rest) > 0 {
		cfg.Subcommand = rest
	}

	log := buildLogger(opts, cfg)

	ws, err := metadata.Load(opts.ManifestPath)
	if err != nil {
		return err
	}
	selected, err := selectPackages(ws, opts.Packages)
	if err != nil {
		return err
	}
	if opts.IgnorePrivate {
		kept := make([]*metadata.Package, 0, len(selected))
		for _, pkg := range selected {
			if pkg.Private {
				log.Debug().Str("package", pkg.Name).Msg("skipping private package")
				continue
			}
			kept = append(kept, pkg)
		}
		selected = kept
	}

	graphs, err := buildGraphs(ws, selected, opts.IncludeDepsFeatures)
	if err != nil {
		return err
	}

	resolver := &toolchain.Resolver{
		Log:          log,
		Runner:       tools.ExecRunner{},
		ToolchainCmd: cfg.ToolchainTool,
		BuildCmd:     cfg.BuildTool,
	}

	if v, ok := resolver.DetectBuildToolVersion(); ok {
		log.Debug().Str("version", v.String()).Str("tool", cfg.BuildTool).Msg("build tool detected")
	}

	runCfg, err := buildRunConfig(opts, cfg, selected, resolver)
	if err != nil {
		return err
	}

	plan, err := runner.BuildPlan(runCfg, graphs)
	if err != nil {
		return err
	}
	log.Info().Int("runs", plan.Total()).Int("packages", len(graphs)).Msg("run plan built")

	restore := manifest.NewRestoreManager(log)
	restore.InstallInterruptHandler()

	orch := &runner.Orchestrator{
		Cfg:      runCfg,
		Log:      log,
		Runner:   tools.ExecRunner{},
		Resolver: resolver,
		Restore:  restore,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
	return orch.Execute(plan)
}

func buildLogger(opts options, cfg toolConfig) zerolog.Logger {
	logOpts := logging.DefaultOptions()
	if lvl, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logOpts.Level = lvl
	}
	logging.ApplyEnvOverrides(&logOpts)
	if lvl, ok := logging.ParseLevel(opts.LogLevel); ok {
		logOpts.Level = lvl
	}
	if opts.NoColor {
		logOpts.NoColor = true
	}
	return logging.New(logOpts)
}

func selectPackages(ws *metadata.Workspace, names []string) ([]*metadata.Package, error) {
	if len(names) == 0 {
		return ws.Packages, nil
	}
	var out []*metadata.Package
	for _, name := range names {
		pkg := ws.FindPackage(name)
		if pkg == nil {
			return nil, fmt.Errorf("package %q is not a workspace member", name)
		}
		out = append(out, pkg)
	}
	return out, nil
}

func buildGraphs(ws *metadata.Workspace, selected []*metadata.Package, includeDeps bool) ([]*features.Graph, error) {
	graphs := make([]*features.Graph, 0, len(selected))
	for _, pkg := range selected {
		var deps map[string]*metadata.Package
		if includeDeps {
			deps = make(map[string]*metadata.Package)
			for _, other := range ws.Packages {
				if other != pkg {
					deps[other.Name] = other
				}
			}
		}
		g, err := features.Build(pkg, deps)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

func buildRunConfig(opts options, cfg toolConfig, selected []*metadata.Package, resolver *toolchain.Resolver) (runner.Config, error) {
	runCfg := runner.Config{
		Mode:             runner.ModeDefault,
		Depth:            opts.Depth,
		ExcludeNoDefault: opts.ExcludeNoDefault,
		IncludeReexports: opts.IncludeDepsFeatures,
		Exclusions:       splitRules[features.ExclusionRule](opts.MutuallyExclusive),
		Requirements:     splitRules[features.RequirementRule](opts.AtLeastOneOf),
		NoDevDeps:        opts.NoDevDeps,
		DevSection:       cfg.DevSection,
		KeepGoing:        opts.KeepGoing,
		BuildCmd:         cfg.BuildTool,
		Subcommand:       cfg.Subcommand,
		Targets:          opts.Targets,
		StreamInstalls:   opts.StreamInstalls,
	}
	switch {
	case opts.FeaturePowerset:
		runCfg.Mode = runner.ModePowerset
	case opts.EachFeature:
		runCfg.Mode = runner.ModeEachFeature
	}

	if opts.Partition != "" {
		p, err := runner.ParsePartition(opts.Partition)
		if err != nil {
			return runner.Config{}, err
		}
		runCfg.Partition = p
	}

	if opts.VersionRange != "" {
		rng, err := toolchain.ParseRange(opts.VersionRange)
		if err != nil {
			return runner.Config{}, err
		}
		ids, err := resolver.Resolve(rng, opts.VersionStep, lowestMSRV(selected))
		if err != nil {
			return runner.Config{}, err
		}
		runCfg.Toolchains = ids
	}
	return runCfg, nil
}

// lowestMSRV picks the smallest declared minimum toolchain version among the
// selected packages; nil when none declares one.
func lowestMSRV(pkgs []*metadata.Package) *toolchain.Version {
	var lowest *toolchain.Version
	for _, pkg := range pkgs {
		if pkg.MinToolchain == "" {
			continue
		}
		v, err := toolchain.Parse(pkg.MinToolchain)
		if err != nil {
			continue
		}
		if lowest == nil || v.Compare(*lowest) < 0 {
			lowest = &v
		}
	}
	return lowest
}

func splitRules[T ~[]string](raw []string) []T {
	var out []T
	for _, entry := range raw {
		var rule T
		for _, name := range strings.Split(entry, ",") {
			if name = strings.TrimSpace(name); name != "" {
				rule = append(rule, name)
			}
		}
		if len(rule) > 0 {
			out = append(out, rule)
		}
	}
	return out
}
