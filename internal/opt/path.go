package opt

import (
	"sort"

	"foodsim/internal/graph"
)

// Cost is the accumulated resource vector of a single-destination path.
type Cost struct {
	Distance int `json:"distance"`
	Time     int `json:"time"`
}

func (c Cost) less(o Cost) bool {
	if c.Time != o.Time {
		return c.Time < o.Time
	}
	return c.Distance < o.Distance
}

// Pareto returns every non-dominated (distance, time) path from src to dst whose
// travel time fits within budget seconds, ordered by time then distance.
func Pareto(g *graph.Graph, src, dst graph.VertexID, budget int) ([][]graph.Edge, []Cost, Stats, error) {
	if !g.HasVertex(src) || !g.HasVertex(dst) {
		return nil, nil, Stats{}, graph.ErrInvalidVertex
	}
	labels, st := search(g, src, dst, Cost{}, Problem[Cost]{
		Extend: func(c Cost, e graph.Edge) (Cost, bool) {
			n := Cost{Distance: c.Distance + e.Distance, Time: c.Time + e.Time}
			return n, n.Time <= budget
		},
		Dominates: func(a, b Cost) bool {
			return a.Distance <= b.Distance && a.Time <= b.Time
		},
		Less: Cost.less,
	})
	if len(labels) == 0 {
		return nil, nil, st, ErrNoPathFound
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].res.less(labels[j].res) })
	paths := make([][]graph.Edge, len(labels))
	costs := make([]Cost, len(labels))
	for i, l := range labels {
		paths[i] = l.path()
		costs[i] = l.res
	}
	return paths, costs, st, nil
}

// FindPath returns the fastest Pareto-optimal path from src to dst, breaking
// ties by distance. A path from a vertex to itself is empty.
func FindPath(g *graph.Graph, src, dst graph.VertexID, budget int) ([]graph.Edge, error) {
	if src == dst {
		if !g.HasVertex(src) {
			return nil, graph.ErrInvalidVertex
		}
		return []graph.Edge{}, nil
	}
	paths, _, st, err := Pareto(g, src, dst, budget)
	observe("path", st, err)
	if err != nil {
		return nil, err
	}
	return paths[0], nil
}

// Sum totals the distance and time of a path.
func Sum(path []graph.Edge) Cost {
	var c Cost
	for _, e := range path {
		c.Distance += e.Distance
		c.Time += e.Time
	}
	return c
}
