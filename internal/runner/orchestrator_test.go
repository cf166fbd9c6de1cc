package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/featctl/internal/features"
	"github.com/danmuck/featctl/internal/manifest"
	"github.com/danmuck/featctl/internal/metadata"
	"github.com/danmuck/featctl/internal/testutil/testlog"
	"github.com/danmuck/featctl/internal/toolchain"
)

// scriptRunner fails the runs whose 1-based execution order it is told to
// fail, and records every command line it sees.
type scriptRunner struct {
	t        *testing.T
	failAt   map[int]bool
	executed []string
	observe  func()
}

func (s *scriptRunner) Run(name string, args ...string) ([]byte, []byte, int, error) {
	code, err := s.exec(name, args)
	return nil, nil, code, err
}

func (s *scriptRunner) RunStreaming(name string, args []string, stdout, stderr io.Writer) (int, error) {
	return s.exec(name, args)
}

func (s *scriptRunner) exec(name string, args []string) (int, error) {
	s.executed = append(s.executed, strings.Join(append([]string{name}, args...), " "))
	if s.observe != nil {
		s.observe()
	}
	if s.failAt[len(s.executed)] {
		return 101, fmt.Errorf("exit status 101")
	}
	return 0, nil
}

func testPlan(t *testing.T, cfg Config, pkgs ...*metadata.Package) *Plan {
	t.Helper()
	graphs := make([]*features.Graph, len(pkgs))
	for i, pkg := range pkgs {
		g, err := features.Build(pkg, nil)
		if err != nil {
			t.Fatalf("build graph: %v", err)
		}
		graphs[i] = g
	}
	plan, err := BuildPlan(cfg, graphs)
	if err != nil {
		t.Fatalf("build plan: %v", err)
	}
	return plan
}

func newOrchestrator(t *testing.T, cfg Config, runner *scriptRunner) *Orchestrator {
	t.Helper()
	log := testlog.New(t)
	return &Orchestrator{
		Cfg:     cfg,
		Log:     log,
		Runner:  runner,
		Restore: manifest.NewRestoreManager(log),
		Resolver: &toolchain.Resolver{
			Log:          log,
			Runner:       runner,
			ToolchainCmd: "chainup",
			BuildCmd:     "buildtool",
		},
	}
}

func TestExecuteKeepGoingAggregatesFailures(t *testing.T) {
	// Three runs; the second fails. Keep-going must execute all three and
	// surface exactly one failed command under the right package.
	cfg := Config{Mode: ModeDefault, KeepGoing: true, BuildCmd: "buildtool", Subcommand: []string{"check"}}
	plan := testPlan(t, cfg,
		&metadata.Package{Name: "pkg-a"},
		&metadata.Package{Name: "pkg-b"},
	)
	// default + no-default for pkg-a, then pkg-b; trim to three runs by
	// excluding pkg-b's no-default via a fresh plan shape.
	plan.Runs = plan.Runs[:3]
	for i := range plan.Runs {
		plan.Runs[i].Ordinal = i
	}

	runner := &scriptRunner{t: t, failAt: map[int]bool{2: true}}
	o := newOrchestrator(t, cfg, runner)

	err := o.Execute(plan)
	if err == nil {
		t.Fatalf("expected aggregate failure")
	}
	if len(runner.executed) != 3 {
		t.Fatalf("keep-going must run the full plan, ran %d", len(runner.executed))
	}

	var summary *SummaryError
	if !errors.As(err, &summary) {
		t.Fatalf("expected summary error, got %T: %v", err, err)
	}
	if got := summary.Packages(); len(got) != 1 || got[0] != "pkg-a" {
		t.Fatalf("failure attributed to wrong package: %v", got)
	}

	if plan.Runs[0].State != StateSucceeded || plan.Runs[1].State != StateFailed || plan.Runs[2].State != StateSucceeded {
		t.Fatalf("unexpected run states: %v %v %v",
			plan.Runs[0].State, plan.Runs[1].State, plan.Runs[2].State)
	}
}

func TestExecuteFailFastAbortsRemainingPlan(t *testing.T) {
	cfg := Config{Mode: ModeDefault, BuildCmd: "buildtool", Subcommand: []string{"check"}}
	plan := testPlan(t, cfg,
		&metadata.Package{Name: "pkg-a"},
		&metadata.Package{Name: "pkg-b"},
	)
	plan.Runs = plan.Runs[:3]
	for i := range plan.Runs {
		plan.Runs[i].Ordinal = i
	}

	runner := &scriptRunner{t: t, failAt: map[int]bool{2: true}}
	o := newOrchestrator(t, cfg, runner)

	err := o.Execute(plan)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected command failure, got %v", err)
	}
	if len(runner.executed) != 2 {
		t.Fatalf("fail-fast must stop after the failure, ran %d", len(runner.executed))
	}
	if plan.Runs[2].State != StatePending {
		t.Fatalf("aborted run must stay pending, got %v", plan.Runs[2].State)
	}
}

func TestExecutePartitionSkipsForeignRuns(t *testing.T) {
	cfg := Config{
		Mode:      ModeDefault,
		BuildCmd:  "buildtool",
		Partition: &Partition{Index: 1, Count: 2},
	}
	plan := testPlan(t, cfg, &metadata.Package{Name: "pkg-a"}, &metadata.Package{Name: "pkg-b"})
	if plan.Total() != 4 {
		t.Fatalf("expected 4 planned runs, got %d", plan.Total())
	}

	runner := &scriptRunner{t: t}
	o := newOrchestrator(t, cfg, runner)
	if err := o.Execute(plan); err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}

	// Chunk is ceil(4/2) = 2: shard 1 executes ordinals 0 and 1.
	if len(runner.executed) != 2 {
		t.Fatalf("expected 2 executed runs, got %d", len(runner.executed))
	}
	if plan.Runs[2].State != StateSkipped || plan.Runs[3].State != StateSkipped {
		t.Fatalf("foreign runs must be skipped: %v %v", plan.Runs[2].State, plan.Runs[3].State)
	}
}

func TestExecuteEnsuresToolchainOncePerVersion(t *testing.T) {
	cfg := Config{
		Mode:       ModeDefault,
		BuildCmd:   "buildtool",
		Toolchains: []string{"1.56"},
	}
	plan := testPlan(t, cfg, &metadata.Package{Name: "pkg-a"})

	runner := &scriptRunner{t: t}
	o := newOrchestrator(t, cfg, runner)
	if err := o.Execute(plan); err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}

	probes := 0
	for _, line := range runner.executed {
		if strings.HasPrefix(line, "buildtool +1.56 --version") {
			probes++
		}
	}
	if probes != 1 {
		t.Fatalf("toolchain must be probed exactly once, saw %d probes in %v", probes, runner.executed)
	}
}

const devManifest = `[package]
name = "pkg-a"

[dev-dependencies]
mock = "1.0"
`

func TestExecuteStripsAndRestoresDevDependencies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Manifest.toml")
	if err := os.WriteFile(path, []byte(devManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cfg := Config{
		Mode:             ModeDefault,
		ExcludeNoDefault: true,
		BuildCmd:         "buildtool",
		NoDevDeps:        true,
		DevSection:       "dev-dependencies",
	}
	plan := testPlan(t, cfg, &metadata.Package{Name: "pkg-a", ManifestPath: path})

	runner := &scriptRunner{t: t}
	runner.observe = func() {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("read manifest during run: %v", err)
			return
		}
		if strings.Contains(string(data), "dev-dependencies") {
			t.Errorf("dev-dependencies present while a run executes:\n%s", data)
		}
	}

	o := newOrchestrator(t, cfg, runner)
	if err := o.Execute(plan); err != nil {
		t.Fatalf("unexpected execute error: %v", err)
	}
	if len(runner.executed) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runner.executed))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored manifest: %v", err)
	}
	if string(data) != devManifest {
		t.Fatalf("manifest not restored byte-identically:\n%s", data)
	}
}
