// Package graph holds the road network the couriers travel on: integer-coordinate
// vertices joined by directed edges that carry a distance in meters and a
// travel time in seconds derived from the average courier speed.
package graph

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrInvalidVertex = errors.New("invalid vertex")
	ErrInvalidEdge   = errors.New("invalid edge")
	ErrDuplicateEdge = errors.New("duplicate edge")
)

type VertexID int

type EdgeID int

type Vertex struct {
	ID VertexID `json:"id"`
	X  int      `json:"x"`
	Y  int      `json:"y"`
}

// Edge is a directed road segment. Time is Distance / average speed, rounded down.
type Edge struct {
	ID       EdgeID   `json:"id"`
	From     VertexID `json:"from"`
	To       VertexID `json:"to"`
	Distance int      `json:"distance"`
	Time     int      `json:"time"`
}

// Graph is not safe for concurrent use; the simulation owns it.
type Graph struct {
	speed      int
	vertices   map[VertexID]Vertex
	out        map[VertexID][]Edge
	nextVertex VertexID
	nextEdge   EdgeID
}

// New returns an empty graph whose edge times are computed with averageSpeed (m/s).
func New(averageSpeed int) *Graph {
	if averageSpeed <= 0 {
		averageSpeed = 1
	}
	return &Graph{
		speed:    averageSpeed,
		vertices: map[VertexID]Vertex{},
		out:      map[VertexID][]Edge{},
	}
}

func (g *Graph) AverageSpeed() int { return g.speed }

func (g *Graph) AddVertex(x, y int) VertexID {
	id := g.nextVertex
	g.nextVertex++
	g.vertices[id] = Vertex{ID: id, X: x, Y: y}
	return id
}

// RemoveVertex deletes the vertex together with every edge entering or leaving it.
func (g *Graph) RemoveVertex(id VertexID) error {
	if _, ok := g.vertices[id]; !ok {
		return ErrInvalidVertex
	}
	delete(g.vertices, id)
	delete(g.out, id)
	for src, edges := range g.out {
		kept := edges[:0]
		for _, e := range edges {
			if e.To != id {
				kept = append(kept, e)
			}
		}
		g.out[src] = kept
	}
	return nil
}

func (g *Graph) AddEdge(from, to VertexID, distance int) (EdgeID, error) {
	if !g.HasVertex(from) || !g.HasVertex(to) {
		return 0, ErrInvalidVertex
	}
	if distance < 0 {
		return 0, ErrInvalidEdge
	}
	id := g.nextEdge
	g.nextEdge++
	g.out[from] = append(g.out[from], Edge{
		ID:       id,
		From:     from,
		To:       to,
		Distance: distance,
		Time:     distance / g.speed,
	})
	return id, nil
}

// RemoveEdge drops the edges from -> to. Removing a missing edge is a no-op.
func (g *Graph) RemoveEdge(from, to VertexID) {
	edges, ok := g.out[from]
	if !ok {
		return
	}
	kept := edges[:0]
	for _, e := range edges {
		if e.To != to {
			kept = append(kept, e)
		}
	}
	g.out[from] = kept
}

func (g *Graph) HasVertex(id VertexID) bool {
	_, ok := g.vertices[id]
	return ok
}

func (g *Graph) HasEdge(from, to VertexID) bool {
	for _, e := range g.out[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

func (g *Graph) Vertex(id VertexID) (Vertex, bool) {
	v, ok := g.vertices[id]
	return v, ok
}

// Vertices returns all vertices ordered by id.
func (g *Graph) Vertices() []Vertex {
	out := make([]Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns all edges ordered by id.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, edges := range g.out {
		out = append(out, edges...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OutEdges returns the edges leaving id in insertion order. The slice must not be modified.
func (g *Graph) OutEdges(id VertexID) []Edge { return g.out[id] }

func (g *Graph) NumVertices() int { return len(g.vertices) }

// Distance returns the straight-line distance between two vertices scaled by scale,
// truncated to whole meters.
func (g *Graph) Distance(a, b VertexID, scale int) (int, error) {
	va, ok := g.vertices[a]
	if !ok {
		return 0, ErrInvalidVertex
	}
	vb, ok := g.vertices[b]
	if !ok {
		return 0, ErrInvalidVertex
	}
	return Euclid(va, vb, scale), nil
}

func Euclid(a, b Vertex, scale int) int {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return int(math.Sqrt(dx*dx+dy*dy) * float64(scale))
}
