// Package opt implements resource-constrained path search on the road graph.
// Both the single-destination and the multi-stop searches run on the same
// label-setting engine with different resource vectors.
package opt

import (
	"container/heap"
	"errors"

	"foodsim/internal/graph"
)

var ErrNoPathFound = errors.New("no path found")

// Problem parameterizes the label-setting search over a resource type R.
type Problem[R any] struct {
	// Extend returns the resources after traversing e and whether they are feasible.
	Extend func(r R, e graph.Edge) (R, bool)
	// Dominates reports whether a is no worse than b. A new label dominated by a
	// label already resident at its vertex is discarded.
	Dominates func(a, b R) bool
	// Less orders the work queue.
	Less func(a, b R) bool
}

// Stats describes the work done by one search.
type Stats struct {
	Created int
	Popped  int
	Pruned  int
}

type label[R any] struct {
	res    R
	vertex graph.VertexID
	edge   graph.Edge
	parent *label[R]
	dead   bool
	index  int
}

// path returns the edges from the search source to l in travel order.
func (l *label[R]) path() []graph.Edge {
	var n int
	for c := l; c.parent != nil; c = c.parent {
		n++
	}
	out := make([]graph.Edge, n)
	for c := l; c.parent != nil; c = c.parent {
		n--
		out[n] = c.edge
	}
	return out
}

type labelHeap[R any] struct {
	items []*label[R]
	less  func(a, b R) bool
}

func (h *labelHeap[R]) Len() int           { return len(h.items) }
func (h *labelHeap[R]) Less(i, j int) bool { return h.less(h.items[i].res, h.items[j].res) }
func (h *labelHeap[R]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}
func (h *labelHeap[R]) Push(x any) {
	n := x.(*label[R])
	n.index = len(h.items)
	h.items = append(h.items, n)
}
func (h *labelHeap[R]) Pop() any {
	old := h.items
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return x
}

// search runs label setting from src and returns the undominated labels that
// reached dst through at least one edge. Labels at dst are not extended, except
// the initial one when src == dst.
func search[R any](g *graph.Graph, src, dst graph.VertexID, init R, p Problem[R]) ([]*label[R], Stats) {
	var st Stats
	resident := map[graph.VertexID][]*label[R]{}
	start := &label[R]{res: init, vertex: src}
	resident[src] = []*label[R]{start}
	st.Created++

	pq := &labelHeap[R]{less: p.Less}
	heap.Push(pq, start)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*label[R])
		if cur.dead {
			continue
		}
		st.Popped++
		if cur.vertex == dst && cur.parent != nil {
			continue
		}
		for _, e := range g.OutEdges(cur.vertex) {
			res, ok := p.Extend(cur.res, e)
			if !ok {
				continue
			}
			if dominated(resident[e.To], res, p.Dominates) {
				st.Pruned++
				continue
			}
			next := &label[R]{res: res, vertex: e.To, edge: e, parent: cur}
			st.Created++
			kept := resident[e.To][:0]
			for _, old := range resident[e.To] {
				if p.Dominates(res, old.res) {
					old.dead = true
					st.Pruned++
					continue
				}
				kept = append(kept, old)
			}
			resident[e.To] = append(kept, next)
			heap.Push(pq, next)
		}
	}

	var out []*label[R]
	for _, l := range resident[dst] {
		if l.parent != nil {
			out = append(out, l)
		}
	}
	return out, st
}

func dominated[R any](labels []*label[R], r R, dom func(a, b R) bool) bool {
	for _, l := range labels {
		if dom(l.res, r) {
			return true
		}
	}
	return false
}
