package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

var (
	ErrVersionDetection = errors.New("toolchain: version detection failed")
	ErrRangeSpec        = errors.New("toolchain: invalid version range")
	ErrInstallFailed    = errors.New("toolchain: install failed")
)

// Version is a toolchain version inside the fixed major-1 epoch. Selection
// is minor-granularity; a patch component is carried only so the resolver
// can warn that it is ignored.
type Version struct {
	Minor    int
	Patch    int
	HasPatch bool
}

// Parse accepts "1.<minor>" and "1.<minor>.<patch>" forms.
func Parse(raw string) (Version, error) {
	raw = strings.TrimSpace(raw)
	sv, err := semver.ParseTolerant(raw)
	if err != nil {
		return Version{}, fmt.Errorf("%w: malformed version %q: %v", ErrRangeSpec, raw, err)
	}
	if sv.Major != 1 {
		return Version{}, fmt.Errorf("%w: unsupported major version in %q, only 1.x is accepted", ErrRangeSpec, raw)
	}
	v := Version{Minor: int(sv.Minor)}
	if strings.Count(strings.SplitN(raw, "-", 2)[0], ".") >= 2 {
		v.Patch = int(sv.Patch)
		v.HasPatch = true
	}
	return v, nil
}

func (v Version) String() string {
	if v.HasPatch {
		return fmt.Sprintf("1.%d.%d", v.Minor, v.Patch)
	}
	return fmt.Sprintf("1.%d", v.Minor)
}

// ID is the toolchain identifier used for selection and installation;
// always minor-granularity.
func (v Version) ID() string {
	return fmt.Sprintf("1.%d", v.Minor)
}

// Compare orders versions lexicographically on (minor, patch-if-present).
func (v Version) Compare(o Version) int {
	if v.Minor != o.Minor {
		if v.Minor < o.Minor {
			return -1
		}
		return 1
	}
	vp, op := 0, 0
	if v.HasPatch {
		vp = v.Patch
	}
	if o.HasPatch {
		op = o.Patch
	}
	if vp != op {
		if vp < op {
			return -1
		}
		return 1
	}
	return 0
}

// ParseReleaseLine extracts the version from "--version --verbose"-style
// output containing a line of the form
//
//	release: <major>.<minor>[.<patch>][-<channel>]
//
// Any other shape is a detection failure; callers degrade to an unknown
// version rather than aborting.
func ParseReleaseLine(output string) (Version, error) {
	for _, line := range strings.Split(output, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "release:")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		sv, err := semver.ParseTolerant(value)
		if err != nil {
			return Version{}, fmt.Errorf("%w: malformed release line %q: %v", ErrVersionDetection, line, err)
		}
		if sv.Major != 1 {
			return Version{}, fmt.Errorf("%w: release %q outside the 1.x epoch", ErrVersionDetection, value)
		}
		v := Version{Minor: int(sv.Minor)}
		if strings.Count(strings.SplitN(value, "-", 2)[0], ".") >= 2 {
			v.Patch = int(sv.Patch)
			v.HasPatch = true
		}
		return v, nil
	}
	return Version{}, fmt.Errorf("%w: no release line in output", ErrVersionDetection)
}

// boundKind tags the Range endpoints.
type boundKind int

const (
	boundExplicit boundKind = iota
	// boundMSRV resolves to the package's declared minimum version.
	boundMSRV
	// boundStable resolves to the latest installed stable release.
	boundStable
)

// Bound is one endpoint of a version range: an explicit version or a
// sentinel resolved before ordering.
type Bound struct {
	kind boundKind
	ver  Version
}

// Range is a requested span of toolchain versions.
type Range struct {
	Start Bound
	End   Bound
}

// ParseRange reads "<start>..<end>" where either endpoint may be empty or a
// sentinel: an empty or "msrv" start means the declared minimum version, an
// empty or "stable" end means the latest stable release. A bare "<version>"
// is the single-version range.
func ParseRange(raw string) (Range, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Range{}, fmt.Errorf("%w: empty range", ErrRangeSpec)
	}

	start, end, found := strings.Cut(raw, "..")
	if !found {
		v, err := Parse(start)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: Bound{ver: v}, End: Bound{ver: v}}, nil
	}

	r := Range{}
	switch strings.TrimSpace(start) {
	case "", "msrv":
		r.Start = Bound{kind: boundMSRV}
	default:
		v, err := Parse(start)
		if err != nil {
			return Range{}, err
		}
		r.Start = Bound{ver: v}
	}
	switch strings.TrimSpace(end) {
	case "", "stable":
		r.End = Bound{kind: boundStable}
	default:
		v, err := Parse(end)
		if err != nil {
			return Range{}, err
		}
		r.End = Bound{ver: v}
	}
	return r, nil
}
