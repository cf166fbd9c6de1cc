package toolchain

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/featctl/internal/tools"
)

// Resolver turns version ranges into concrete toolchain identifiers and
// makes sure each one is usable before the orchestrator schedules runs on
// it.
type Resolver struct {
	Log    zerolog.Logger
	Runner tools.Runner

	// ToolchainCmd is the toolchain manager binary (install/list).
	ToolchainCmd string
	// BuildCmd is the driven build tool; "+<id>" selects a toolchain.
	BuildCmd string
}

// Resolve expands rng into every minor version from start to end inclusive,
// stepped by step, as toolchain identifiers. msrv supplies the declared
// minimum version when the start bound asks for it; nil means the package
// declares none.
func (r *Resolver) Resolve(rng Range, step int, msrv *Version) ([]string, error) {
	if step == 0 {
		return nil, fmt.Errorf("%w: step must not be zero", ErrRangeSpec)
	}
	if step < 0 {
		return nil, fmt.Errorf("%w: step must be positive", ErrRangeSpec)
	}

	start, err := r.resolveBound(rng.Start, msrv)
	if err != nil {
		return nil, err
	}
	end, err := r.resolveBound(rng.End, msrv)
	if err != nil {
		return nil, err
	}

	if start.HasPatch || end.HasPatch {
		r.Log.Warn().
			Str("start", start.String()).
			Str("end", end.String()).
			Msg("patch components are ignored; version selection is minor-granularity")
	}

	var ids []string
	for minor := start.Minor; minor <= end.Minor; minor += step {
		ids = append(ids, Version{Minor: minor}.ID())
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: empty range %s..%s", ErrRangeSpec, start, end)
	}
	return ids, nil
}

func (r *Resolver) resolveBound(b Bound, msrv *Version) (Version, error) {
	switch b.kind {
	case boundMSRV:
		if msrv == nil {
			return Version{}, fmt.Errorf("%w: no declared minimum toolchain version to anchor the range", ErrRangeSpec)
		}
		return *msrv, nil
	case boundStable:
		return r.latestStable()
	default:
		return b.ver, nil
	}
}

// latestStable finds the stable release's minor version: the toolchain
// manager's list output is checked for a stable entry (installing one when
// absent), then the build tool reports its version under that toolchain.
func (r *Resolver) latestStable() (Version, error) {
	stdout, _, _, err := r.Runner.Run(r.ToolchainCmd, "toolchain", "list")
	if err != nil {
		return Version{}, fmt.Errorf("%w: toolchain list: %v", ErrVersionDetection, err)
	}
	if !containsStable(string(stdout)) {
		r.Log.Info().Msg("no stable toolchain installed, installing")
		if err := r.install("stable", "", false, nil); err != nil {
			return Version{}, err
		}
	}

	out, _, _, err := r.Runner.Run(r.BuildCmd, "+stable", "--version", "--verbose")
	if err != nil {
		return Version{}, fmt.Errorf("%w: query stable version: %v", ErrVersionDetection, err)
	}
	return ParseReleaseLine(string(out))
}

func containsStable(listOutput string) bool {
	for _, line := range strings.Split(listOutput, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "stable") {
			return true
		}
	}
	return false
}

// EnsureInstalled probes whether the toolchain already answers a trivial
// version query and installs it when it does not. With stream set, install
// output goes live to out; otherwise it is captured silently.
func (r *Resolver) EnsureInstalled(id, target string, stream bool, out io.Writer) error {
	if _, _, _, err := r.Runner.Run(r.BuildCmd, "+"+id, "--version"); err == nil {
		r.Log.Debug().Str("toolchain", id).Msg("toolchain already installed")
		return nil
	}
	return r.install(id, target, stream, out)
}

func (r *Resolver) install(id, target string, stream bool, out io.Writer) error {
	args := []string{"toolchain", "install", id}
	if target != "" {
		args = append(args, "--target", target)
	}

	r.Log.Info().Str("toolchain", id).Str("target", target).Msg("installing toolchain")
	if stream {
		code, err := r.Runner.RunStreaming(r.ToolchainCmd, args, out, out)
		if err != nil {
			return fmt.Errorf("%w: %s exited %d: %v", ErrInstallFailed, id, code, err)
		}
		return nil
	}

	_, stderr, code, err := r.Runner.Run(r.ToolchainCmd, args...)
	if err != nil {
		return fmt.Errorf("%w: %s exited %d: %s", ErrInstallFailed, id, code, strings.TrimSpace(string(stderr)))
	}
	return nil
}

// DetectBuildToolVersion asks the build tool for its own version. Detection
// failure is recoverable: the caller receives ok=false and must disable
// version-gated behavior instead of aborting.
func (r *Resolver) DetectBuildToolVersion() (Version, bool) {
	stdout, _, _, err := r.Runner.Run(r.BuildCmd, "--version", "--verbose")
	if err != nil {
		r.Log.Warn().Err(err).Msg("build tool version query failed; version-gated behavior disabled")
		return Version{}, false
	}
	v, err := ParseReleaseLine(string(stdout))
	if err != nil {
		r.Log.Warn().Err(err).Msg("build tool version undetected; version-gated behavior disabled")
		return Version{}, false
	}
	return v, true
}
