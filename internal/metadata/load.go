package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

var (
	ErrManifestIO   = errors.New("metadata: manifest unreadable")
	ErrManifestForm = errors.New("metadata: manifest undecodable")
	ErrNoPackages   = errors.New("metadata: no packages in workspace")
)

// manifestFile is the subset of the manifest grammar the loader consumes.
// Everything else in the document is ignored here; the editor in
// internal/manifest never goes through this decode.
type manifestFile struct {
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Package struct {
		Name         string `toml:"name"`
		Publish      *bool  `toml:"publish"`
		MinToolchain string `toml:"min-toolchain"`
	} `toml:"package"`
	Features        map[string][]string `toml:"features"`
	Dependencies    map[string]any      `toml:"dependencies"`
	DevDependencies map[string]any      `toml:"dev-dependencies"`

	rawFeatureOrder []string `toml:"-"`
}

// Load reads the workspace-root manifest and every member manifest,
// producing the metadata snapshot the orchestrator plans from.
func Load(rootManifest string) (*Workspace, error) {
	root, err := filepath.Abs(rootManifest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestIO, rootManifest, err)
	}

	rootFile, err := decodeManifest(root)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Root: filepath.Dir(root)}

	if rootFile.Package.Name != "" {
		ws.Packages = append(ws.Packages, newPackage(root, rootFile))
	}

	base := filepath.Base(root)
	for _, member := range rootFile.Workspace.Members {
		path := filepath.Join(ws.Root, filepath.FromSlash(member), base)
		mf, err := decodeManifest(path)
		if err != nil {
			return nil, err
		}
		if mf.Package.Name == "" {
			return nil, fmt.Errorf("%w: %s: member manifest missing package name", ErrManifestForm, path)
		}
		ws.Packages = append(ws.Packages, newPackage(path, mf))
	}

	if len(ws.Packages) == 0 {
		return nil, ErrNoPackages
	}
	return ws, nil
}

func decodeManifest(path string) (*manifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestIO, path, err)
	}
	var mf manifestFile
	if err := toml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestForm, path, err)
	}
	mf.rawFeatureOrder = featureOrder(data, mf.Features)
	return &mf, nil
}

func newPackage(path string, mf *manifestFile) *Package {
	pkg := &Package{
		Name:         mf.Package.Name,
		ManifestPath: path,
		Features:     mf.Features,
		FeatureOrder: mf.rawFeatureOrder,
		OptionalDeps: optionalDeps(mf.Dependencies),
		MinToolchain: mf.Package.MinToolchain,
	}
	if mf.Package.Publish != nil && !*mf.Package.Publish {
		pkg.Private = true
	}
	return pkg
}

// optionalDeps extracts dependency names declared with optional = true.
// Dependency entries are either bare version strings or inline tables.
func optionalDeps(deps map[string]any) []string {
	var out []string
	for name, v := range deps {
		table, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if opt, ok := table["optional"].(bool); ok && opt {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// featureOrder recovers the declaration order of the [features] table by a
// line scan, since the decoded map is unordered. Keys the scan misses (exotic
// formatting) are appended sorted, so the result always covers every flag.
func featureOrder(raw []byte, features map[string][]string) []string {
	if len(features) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(features))
	var order []string

	inFeatures := false
	for _, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") {
			inFeatures = trimmed == "[features]"
			continue
		}
		if !inFeatures {
			continue
		}
		eq := strings.IndexByte(trimmed, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eq])
		key = strings.Trim(key, `"'`)
		if _, ok := features[key]; ok && !seen[key] {
			seen[key] = true
			order = append(order, key)
		}
	}

	var missing []string
	for name := range features {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return append(order, missing...)
}
