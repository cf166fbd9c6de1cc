package features

// Powerset enumerates activation combinations of the given features in a
// fixed, test-visible order: starting from the empty combination, each input
// feature extends every combination accumulated so far, and the surviving
// extensions are appended in that order. For [a,b,c,d] this yields
// [], [a], [b], [a,b], [c], [a,c], [b,c], [a,b,c], [d], ...
//
// depth > 0 bounds combination size; oversized extensions are discarded
// during generation, never materialized.
func Powerset(feats []Feature, depth int) [][]Feature {
	combos := [][]Feature{{}}
	for _, f := range feats {
		n := len(combos)
		for i := 0; i < n; i++ {
			if depth > 0 && len(combos[i])+1 > depth {
				continue
			}
			ext := make([]Feature, len(combos[i]), len(combos[i])+1)
			copy(ext, combos[i])
			combos = append(combos, append(ext, f))
		}
	}
	return combos
}

// FeaturePowerset runs the depth-bounded powerset and drops combinations
// whose effective activation state duplicates a smaller combination: if some
// member A's transitive dependency closure already covers every atomic name
// of another member B, activating B explicitly changes nothing, so the
// combination is an exact duplicate of itself minus B.
//
// deps is the declared flag -> direct-dependency map from the manifest.
func FeaturePowerset(feats []Feature, depth int, deps map[string][]string) [][]Feature {
	closures := Closures(deps)

	combos := Powerset(feats, depth)
	filtered := combos[:0]
	for _, combo := range combos {
		if hasImpliedMember(combo, closures) {
			continue
		}
		filtered = append(filtered, combo)
	}
	return filtered
}

// Closures computes, per declared flag, the set of all directly and
// indirectly required flags. Traversal is an iterative worklist with a
// visited set per root: an edge pointing back at the root is skipped, and a
// cycle among non-root flags simply terminates once everything reachable has
// been visited. The root itself is never part of its own closure.
func Closures(deps map[string][]string) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(deps))
	for root, direct := range deps {
		visited := make(map[string]bool)
		stack := make([]string, len(direct))
		copy(stack, direct)
		for len(stack) > 0 {
			flag := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if flag == root || visited[flag] {
				continue
			}
			visited[flag] = true
			stack = append(stack, deps[flag]...)
		}
		out[root] = visited
	}
	return out
}

func hasImpliedMember(combo []Feature, closures map[string]map[string]bool) bool {
	for i, a := range combo {
		implied := impliedSet(a, closures)
		if len(implied) == 0 {
			continue
		}
		for j, b := range combo {
			if i == j {
				continue
			}
			if covers(implied, b.AtomicNames()) {
				return true
			}
		}
	}
	return false
}

// impliedSet is everything activating f activates besides f itself: the
// closures of its atomic names, plus — for groups — the members themselves.
func impliedSet(f Feature, closures map[string]map[string]bool) map[string]bool {
	implied := make(map[string]bool)
	for _, name := range f.AtomicNames() {
		if f.Kind == KindGroup {
			implied[name] = true
		}
		for dep := range closures[name] {
			implied[dep] = true
		}
	}
	return implied
}

func covers(set map[string]bool, names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, n := range names {
		if !set[n] {
			return false
		}
	}
	return true
}

// ExclusionRule rejects combinations activating more than one of its flags.
type ExclusionRule []string

// RequirementRule rejects combinations activating none of its flags.
type RequirementRule []string

// ApplyGroupRules filters combos against mutual-exclusion and at-least-one
// rules. It runs after the closure dedup filter, on atomic activation names.
func ApplyGroupRules(combos [][]Feature, exclusions []ExclusionRule, requirements []RequirementRule) [][]Feature {
	if len(exclusions) == 0 && len(requirements) == 0 {
		return combos
	}
	out := make([][]Feature, 0, len(combos))
	for _, combo := range combos {
		active := make(map[string]bool)
		for _, f := range combo {
			for _, name := range f.AtomicNames() {
				active[name] = true
			}
		}
		if violates(active, exclusions, requirements) {
			continue
		}
		out = append(out, combo)
	}
	return out
}

func violates(active map[string]bool, exclusions []ExclusionRule, requirements []RequirementRule) bool {
	for _, rule := range exclusions {
		hits := 0
		for _, name := range rule {
			if active[name] {
				hits++
			}
		}
		if hits > 1 {
			return true
		}
	}
	for _, rule := range requirements {
		if len(rule) == 0 {
			continue
		}
		satisfied := false
		for _, name := range rule {
			if active[name] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return true
		}
	}
	return false
}
