package compiler

import (
	"sort"

	"github.com/aretw0/promptloom/pkg/domain"
)

// Order returns a copy of p with nodes in topological order of its edges
// (Kahn's algorithm). Ready nodes are taken in lexicographic ID order, so the
// result is deterministic. Edges that mention unknown nodes are ignored.
// Without edges the authored order is kept; on a cycle nodes fall back to ID
// order.
func Order(p domain.Project) domain.Project {
	out := p.Clone()
	if len(p.Edges) == 0 {
		return out
	}

	byID := make(map[string]domain.ProjectNode, len(p.Nodes))
	for _, n := range p.Nodes {
		byID[n.ID] = n
	}

	indeg := make(map[string]int, len(byID))
	next := make(map[string][]string, len(byID))
	for id := range byID {
		indeg[id] = 0
	}
	for _, e := range p.Edges {
		if _, ok := byID[e.Source]; !ok {
			continue
		}
		if _, ok := byID[e.Target]; !ok {
			continue
		}
		indeg[e.Target]++
		next[e.Source] = append(next[e.Source], e.Target)
	}

	var ready []string
	for id, d := range indeg {
		if d == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	sorted := make([]domain.ProjectNode, 0, len(byID))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, byID[id])

		targets := append([]string(nil), next[id]...)
		sort.Strings(targets)
		for _, to := range targets {
			indeg[to]--
			if indeg[to] == 0 {
				ready = insertSorted(ready, to)
			}
		}
	}

	if len(sorted) != len(p.Nodes) {
		sorted = append(sorted[:0], p.Nodes...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	}
	out.Nodes = sorted
	return out
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}
