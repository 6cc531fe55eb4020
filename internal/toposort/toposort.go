// Package toposort orders flags and segments so that, within a single store write, every item is
// inserted only after the items it depends on (prerequisite flags, segments referenced by
// segmentMatch clauses). Ordering is computed with Kahn's algorithm: a breadth-first reduction of
// in-degrees rather than a depth-first traversal, so a dependency cycle surfaces as a set of
// vertices that never reach in-degree zero instead of as unbounded recursion.
package toposort

import (
	"golang.org/x/exp/slices"

	"github.com/flagcore/flagcore/ldmodel"
	"github.com/flagcore/flagcore/ldvalue"
)

// Kind distinguishes the two data kinds that participate in dependency ordering.
type Kind int

const (
	// KindSegments is processed before KindFeatures, since flags can reference segments but not
	// the reverse.
	KindSegments Kind = iota
	// KindFeatures holds feature flags, which may depend on other flags (prerequisites) or
	// segments (segmentMatch clauses).
	KindFeatures
)

// Vertex identifies a single flag or segment in the dependency graph.
type Vertex struct {
	Kind Kind
	Key  string
}

// Neighbors is a set of vertices, used for dependency edges.
type Neighbors map[Vertex]struct{}

// Add inserts a vertex into the set.
func (n Neighbors) Add(v Vertex) { n[v] = struct{}{} }

// Item is a single flag or segment to be ordered, identified by key, with its dependency edges
// already resolved by the caller (see Dependencies/SegmentDependencies).
type Item struct {
	Key          string
	Dependencies Neighbors
}

// Dependencies returns the direct dependency edges of a flag: its prerequisite flags, plus any
// segment referenced by a segmentMatch clause in one of its rules.
func Dependencies(flag *ldmodel.FeatureFlag) Neighbors {
	var deps Neighbors
	add := func(v Vertex) {
		if deps == nil {
			deps = make(Neighbors)
		}
		deps.Add(v)
	}
	for _, p := range flag.Prerequisites {
		add(Vertex{Kind: KindFeatures, Key: p.Key})
	}
	for _, r := range flag.Rules {
		addSegmentDeps(r.Clauses, add)
	}
	return deps
}

// SegmentDependencies returns the direct dependency edges of a segment: segments referenced by
// segmentMatch clauses in its own rules (a segment referencing another segment is unusual but not
// prohibited by the wire format).
func SegmentDependencies(segment *ldmodel.Segment) Neighbors {
	var deps Neighbors
	add := func(v Vertex) {
		if deps == nil {
			deps = make(Neighbors)
		}
		deps.Add(v)
	}
	for _, r := range segment.Rules {
		addSegmentDeps(r.Clauses, add)
	}
	return deps
}

func addSegmentDeps(clauses []ldmodel.Clause, add func(Vertex)) {
	for _, c := range clauses {
		if c.Op != ldmodel.OperatorSegmentMatch {
			continue
		}
		for _, v := range c.Values {
			if v.Type() == ldvalue.StringType {
				add(Vertex{Kind: KindSegments, Key: v.String()})
			}
		}
	}
}

// Sort performs a topological sort of items within a single kind using Kahn's algorithm: it
// repeatedly removes vertices with in-degree zero (no unresolved dependencies) and appends them to
// the output. Vertices involved in a cycle never reach in-degree zero; they are appended to the
// end of the output, in a stable but otherwise arbitrary order, so that cyclic data is still
// stored (the evaluator is responsible for detecting the cycle at evaluation time and returning
// MALFORMED_FLAG) rather than silently dropped.
func Sort(items []Item, ownKind Kind) []string {
	inDegree := make(map[string]int, len(items))
	dependents := make(map[string][]string) // key -> keys that depend on it
	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.Key] = true
		if _, ok := inDegree[it.Key]; !ok {
			inDegree[it.Key] = 0
		}
	}
	for _, it := range items {
		for dep := range it.Dependencies {
			if dep.Kind != ownKind || !present[dep.Key] {
				continue // cross-kind or dangling dependency does not constrain same-kind ordering
			}
			inDegree[it.Key]++
			dependents[dep.Key] = append(dependents[dep.Key], it.Key)
		}
	}

	queue := make([]string, 0, len(items))
	for _, it := range items {
		if inDegree[it.Key] == 0 {
			queue = append(queue, it.Key)
		}
	}
	slices.Sort(queue)

	out := make([]string, 0, len(items))
	visited := make(map[string]bool, len(items))
	for len(queue) > 0 {
		key := queue[0]
		queue = queue[1:]
		if visited[key] {
			continue
		}
		visited[key] = true
		out = append(out, key)

		next := append([]string(nil), dependents[key]...)
		slices.Sort(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(out) < len(items) {
		remaining := make([]string, 0, len(items)-len(out))
		for _, it := range items {
			if !visited[it.Key] {
				remaining = append(remaining, it.Key)
			}
		}
		slices.Sort(remaining)
		out = append(out, remaining...)
	}
	return out
}

// KindPriority orders data kinds so that segments are always processed before features, matching
// the Data Store's required init ordering.
func KindPriority(kind Kind) int {
	switch kind {
	case KindSegments:
		return 0
	default:
		return 1
	}
}
