package graph

import "fmt"

// VertexSpec and EdgeSpec describe a map in configuration files.
// Vertex ids are assigned in list order starting at 0.
type VertexSpec struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// EdgeSpec with a zero Distance gets the scaled straight-line distance.
type EdgeSpec struct {
	From     int `yaml:"from" json:"from"`
	To       int `yaml:"to" json:"to"`
	Distance int `yaml:"distance,omitempty" json:"distance,omitempty"`
}

// DefaultVertices is the built-in town; vertex 0 is the depot.
var DefaultVertices = []VertexSpec{
	{0, 0}, {200, 0}, {400, 100}, {200, 200},
	{0, 200}, {100, 100}, {150, 50}, {250, 50},
}

var DefaultEdges = []EdgeSpec{
	{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 4},
	{From: 4, To: 0}, {From: 0, To: 5}, {From: 5, To: 2}, {From: 5, To: 3},
	{From: 1, To: 3}, {From: 0, To: 6}, {From: 6, To: 0}, {From: 1, To: 6},
	{From: 6, To: 5}, {From: 6, To: 7}, {From: 7, To: 1},
}

// Build creates a graph from vertex and edge lists. Empty vertex lists fall back
// to the default map.
func Build(averageSpeed, scale int, vertices []VertexSpec, edges []EdgeSpec) (*Graph, error) {
	if len(vertices) == 0 {
		vertices, edges = DefaultVertices, DefaultEdges
	}
	if scale <= 0 {
		scale = 1
	}
	g := New(averageSpeed)
	for _, v := range vertices {
		g.AddVertex(v.X, v.Y)
	}
	for i, e := range edges {
		from, to := VertexID(e.From), VertexID(e.To)
		if g.HasEdge(from, to) {
			return nil, fmt.Errorf("edge %d (%d->%d): %w", i, e.From, e.To, ErrDuplicateEdge)
		}
		dist := e.Distance
		if dist == 0 {
			d, err := g.Distance(from, to, scale)
			if err != nil {
				return nil, fmt.Errorf("edge %d (%d->%d): %w", i, e.From, e.To, err)
			}
			dist = d
		}
		if _, err := g.AddEdge(from, to, dist); err != nil {
			return nil, fmt.Errorf("edge %d (%d->%d): %w", i, e.From, e.To, err)
		}
	}
	return g, nil
}
