package metadata

// Package is the read-only view of one workspace member as reported by the
// metadata source. The execution core never mutates it.
type Package struct {
	// Name is the package identity used in reports and failure grouping.
	Name string
	// ManifestPath is the absolute path of the package's manifest file.
	ManifestPath string
	// Features maps each declared flag to the flags it directly requires.
	Features map[string][]string
	// FeatureOrder preserves the manifest's declaration order of flags;
	// plan enumeration must be deterministic.
	FeatureOrder []string
	// OptionalDeps lists dependency names declared optional; each backs an
	// implicit flag of the same name.
	OptionalDeps []string
	// Private reports a package excluded from publishing.
	Private bool
	// MinToolchain is the declared minimum supported toolchain version,
	// empty when the package does not declare one.
	MinToolchain string
}

// Workspace is the full metadata snapshot handed to the orchestrator.
type Workspace struct {
	Root     string
	Packages []*Package
}

// FindPackage returns the member with the given name, or nil.
func (w *Workspace) FindPackage(name string) *Package {
	for _, pkg := range w.Packages {
		if pkg.Name == name {
			return pkg
		}
	}
	return nil
}
