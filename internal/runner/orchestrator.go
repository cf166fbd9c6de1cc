package runner

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/featctl/internal/manifest"
	"github.com/danmuck/featctl/internal/toolchain"
	"github.com/danmuck/featctl/internal/tools"
)

var ErrCommandFailed = errors.New("runner: command failed")

// Orchestrator executes a run plan strictly sequentially, one external
// command at a time. The only concurrent actor is the restore manager's
// interrupt handler.
type Orchestrator struct {
	Cfg      Config
	Log      zerolog.Logger
	Runner   tools.Runner
	Resolver *toolchain.Resolver
	Restore  *manifest.RestoreManager

	// Stdout and Stderr receive the driven tool's live output.
	Stdout io.Writer
	Stderr io.Writer
}

// progress pairs the running count with the precomputed total. Guarded by a
// lock because the interrupt actor may read it for its final report.
type progress struct {
	mu    sync.Mutex
	done  int
	total int
}

func (p *progress) next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	return p.done
}

// Execute runs the plan in order. Under keep-going, per-run failures are
// recorded and the aggregate surfaces at the end; otherwise the first
// failure aborts the remaining plan.
func (o *Orchestrator) Execute(plan *Plan) (err error) {
	total := plan.Total()
	prog := &progress{total: total}
	failures := &FailureLog{}
	ensured := make(map[string]bool)

	// One manifest edit is in scope at a time; it follows the package
	// whose runs are executing and is always undone, on every exit path.
	var edit *manifest.EditHandle
	editedPath := ""
	defer func() {
		if closeErr := edit.Close(); closeErr != nil {
			o.Log.Error().Err(closeErr).Msg("manifest restore failed")
			if err == nil {
				err = closeErr
			}
		}
	}()

	for i := range plan.Runs {
		run := &plan.Runs[i]
		count := prog.next()

		if o.Cfg.Partition != nil && !o.Cfg.Partition.Owns(run.Ordinal, total) {
			run.State = StateSkipped
			o.Log.Info().
				Int("count", count).Int("total", total).
				Msgf("skipping %s (other partition)", Describe(*run))
			continue
		}

		if run.Toolchain != "" {
			key := run.Toolchain + "|" + run.Target
			if !ensured[key] {
				if err := o.Resolver.EnsureInstalled(run.Toolchain, run.Target, o.Cfg.StreamInstalls, o.Stderr); err != nil {
					return err
				}
				ensured[key] = true
			}
		}

		if o.Cfg.NoDevDeps && run.Package.ManifestPath != editedPath {
			if closeErr := edit.Close(); closeErr != nil {
				return closeErr
			}
			handle, editErr := manifest.RemoveSections(o.Restore, run.Package.ManifestPath, o.Cfg.DevSection)
			if editErr != nil {
				return editErr
			}
			edit = handle
			editedPath = run.Package.ManifestPath
		}

		argv := ComposeCommand(o.Cfg, *run)
		line := CommandLine(o.Cfg, *run)
		run.State = StateRunning
		o.Log.Info().
			Int("count", count).Int("total", total).
			Str("command", line).
			Msgf("running %s", Describe(*run))

		code, runErr := o.Runner.RunStreaming(argv[0], argv[1:], o.Stdout, o.Stderr)
		if runErr != nil {
			run.State = StateFailed
			if !o.Cfg.KeepGoing {
				return fmt.Errorf("%w: %s (exit %d)", ErrCommandFailed, line, code)
			}
			o.Log.Error().Int("exit", code).Str("command", line).Msg("run failed, continuing")
			failures.Record(run.Package.Name, line)
			continue
		}
		run.State = StateSucceeded
	}

	return failures.Summary()
}
