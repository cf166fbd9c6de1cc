package features

import "strings"

// Kind tags the Feature variants.
type Kind int

const (
	// KindNormal is a single declared flag.
	KindNormal Kind = iota
	// KindGroup is an ordered bundle of flags activated as one unit.
	KindGroup
	// KindPathRef is a "dep/flag" reference into a dependency's own
	// feature graph.
	KindPathRef
)

// Feature is one activatable unit. Identity is the canonical Name; two
// features are the same feature exactly when their names are equal.
type Feature struct {
	Kind Kind
	Name string
	// Members holds the flag names of a group, in activation order.
	// Empty for the other kinds.
	Members []string
}

// Normal wraps a single declared flag.
func Normal(name string) Feature {
	return Feature{Kind: KindNormal, Name: name}
}

// Group bundles several flags into one unit. The canonical name is the
// comma-joined member list.
func Group(members []string) Feature {
	return Feature{Kind: KindGroup, Name: strings.Join(members, ","), Members: members}
}

// PathRef names a flag of a dependency package.
func PathRef(dep, flag string) Feature {
	return Feature{Kind: KindPathRef, Name: dep + "/" + flag}
}

// AtomicNames returns the names the feature contributes to an activation
// set: group members individually, otherwise the canonical name.
func (f Feature) AtomicNames() []string {
	if f.Kind == KindGroup {
		return f.Members
	}
	return []string{f.Name}
}

func (f Feature) String() string {
	return f.Name
}

// Names renders a combination for command composition and logs.
func Names(combo []Feature) []string {
	out := make([]string, len(combo))
	for i, f := range combo {
		out[i] = f.Name
	}
	return out
}
