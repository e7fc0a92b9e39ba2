package opt

import (
	"fmt"
	"slices"
	"sort"

	"foodsim/internal/graph"
)

// TourRequest describes a multi-stop delivery search that starts and ends at Depot.
type TourRequest struct {
	Depot graph.VertexID
	// Targets are destinations; Targets[0] is the primary one and is visited
	// regardless of its deadline.
	Targets []graph.VertexID
	// Deadlines[i] is the remaining time in seconds to reach Targets[i].
	Deadlines []int
	// Budget caps the accumulated time of the whole round trip.
	Budget int
	// StopTime is added to the accumulated time for every visited target.
	StopTime int
	// PathBudget caps the single-destination fallback search.
	PathBudget int
}

// Tour is the outbound part of a delivery trip.
type Tour struct {
	// Path runs from the depot to the last visited target.
	Path []graph.Edge
	// Visited holds indices into TourRequest.Targets in visiting order.
	Visited []int
	// Fallback is set when no multi-stop solution existed and the tour is a
	// plain path to the primary target.
	Fallback bool
}

type tourCost struct {
	distance int
	time     int
	visited  []int
	primary  bool
}

// better is the composite order: primary coverage, visited count, time, distance.
func (a tourCost) better(b tourCost) bool {
	if a.primary != b.primary {
		return a.primary
	}
	if len(a.visited) != len(b.visited) {
		return len(a.visited) > len(b.visited)
	}
	if a.time != b.time {
		return a.time < b.time
	}
	return a.distance < b.distance
}

// FindTour searches for a round trip from the depot that visits as many targets
// as their deadlines allow. When the search produces nothing it falls back to
// the fastest path to Targets[0].
func FindTour(g *graph.Graph, req TourRequest) (Tour, error) {
	if len(req.Targets) == 0 || len(req.Targets) != len(req.Deadlines) {
		return Tour{}, fmt.Errorf("tour: %d targets with %d deadlines", len(req.Targets), len(req.Deadlines))
	}
	if !g.HasVertex(req.Depot) {
		return Tour{}, graph.ErrInvalidVertex
	}
	for _, t := range req.Targets {
		if t == req.Depot || !g.HasVertex(t) {
			return Tour{}, fmt.Errorf("tour target %d: %w", t, graph.ErrInvalidVertex)
		}
	}

	labels, st := search(g, req.Depot, req.Depot, tourCost{}, Problem[tourCost]{
		Extend: func(c tourCost, e graph.Edge) (tourCost, bool) {
			n := tourCost{
				distance: c.distance + e.Distance,
				time:     c.time + e.Time,
				visited:  slices.Clip(c.visited),
				primary:  c.primary,
			}
			for i, t := range req.Targets {
				if t != e.To || slices.Contains(n.visited, i) {
					continue
				}
				if i == 0 {
					n.primary = true
				} else if n.time > req.Deadlines[i] {
					continue
				}
				n.visited = append(n.visited, i)
				n.time += req.StopTime
			}
			return n, n.time <= req.Budget
		},
		Dominates: func(a, b tourCost) bool { return !b.better(a) },
		Less:      tourCost.better,
	})
	observe("tour", st, nil)

	sort.Slice(labels, func(i, j int) bool { return labels[i].res.better(labels[j].res) })
	if len(labels) == 0 || len(labels[0].res.visited) == 0 {
		path, err := FindPath(g, req.Depot, req.Targets[0], req.PathBudget)
		if err != nil {
			return Tour{}, err
		}
		return Tour{Path: path, Visited: []int{0}, Fallback: true}, nil
	}

	best := labels[0]
	last := req.Targets[best.res.visited[len(best.res.visited)-1]]
	full := best.path()
	cut := len(full)
	for i := len(full) - 1; i >= 0; i-- {
		if full[i].From == last {
			cut = i
			break
		}
	}
	return Tour{Path: full[:cut], Visited: best.res.visited}, nil
}
