package board

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultWeight applies to adjacent pairs absent from the weight table.
const DefaultWeight = 1

var (
	ErrAsymmetricAdjacency = errors.New("adjacency is not symmetric")
	ErrUnknownNode         = errors.New("unknown node")
	ErrSelfLoop            = errors.New("node is adjacent to itself")
	ErrBadWeight           = errors.New("invalid edge weight")
)

// Topology is the immutable board graph. It is safe for concurrent use once built.
type Topology struct {
	nodes     []Node
	index     map[Node]struct{}
	adjacency map[Node][]Node
	weights   map[Edge]int
	edges     []Edge
}

// NewTopology validates and freezes an adjacency list and weight table.
// Every node must list its neighbours, adjacency must be symmetric and every
// weighted edge must join adjacent nodes.
func NewTopology(adjacency map[Node][]Node, weights map[Edge]int) (*Topology, error) {
	t := &Topology{
		index:     make(map[Node]struct{}, len(adjacency)),
		adjacency: make(map[Node][]Node, len(adjacency)),
		weights:   make(map[Edge]int, len(weights)),
	}

	for n := range adjacency {
		if !n.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, n)
		}
		t.index[n] = struct{}{}
		t.nodes = append(t.nodes, n)
	}
	sort.Slice(t.nodes, func(i, j int) bool { return t.nodes[i].Less(t.nodes[j]) })

	seen := make(map[Edge]struct{})
	for _, n := range t.nodes {
		neighbors := adjacency[n]
		for _, m := range neighbors {
			if m == n {
				return nil, fmt.Errorf("%w: %s", ErrSelfLoop, n)
			}
			if _, ok := t.index[m]; !ok {
				return nil, fmt.Errorf("%w: %s (neighbour of %s)", ErrUnknownNode, m, n)
			}
			if !contains(adjacency[m], n) {
				return nil, fmt.Errorf("%w: %s lists %s but not the reverse", ErrAsymmetricAdjacency, n, m)
			}
			e := NewEdge(n, m)
			if _, dup := seen[e]; !dup {
				seen[e] = struct{}{}
				t.edges = append(t.edges, e)
			}
		}
		t.adjacency[n] = append([]Node(nil), neighbors...)
	}
	sort.Slice(t.edges, func(i, j int) bool { return t.edges[i].Less(t.edges[j]) })

	for e, w := range weights {
		e = NewEdge(e.A, e.B)
		if w <= 0 {
			return nil, fmt.Errorf("%w: %s has weight %d", ErrBadWeight, e, w)
		}
		if _, ok := seen[e]; !ok {
			return nil, fmt.Errorf("%w: %s joins non-adjacent nodes", ErrBadWeight, e)
		}
		t.weights[e] = w
	}

	return t, nil
}

// MustNewTopology panics when the graph is invalid.
func MustNewTopology(adjacency map[Node][]Node, weights map[Edge]int) *Topology {
	t, err := NewTopology(adjacency, weights)
	if err != nil {
		panic(err)
	}
	return t
}

// Nodes returns every node in canonical order.
func (t *Topology) Nodes() []Node {
	return append([]Node(nil), t.nodes...)
}

// CircuitNodes returns the nodes of one circuit by index.
func (t *Topology) CircuitNodes(c Circuit) []Node {
	out := make([]Node, 0, NodesPerCircuit)
	for _, n := range t.nodes {
		if n.Circuit == c {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Contains reports whether n is on the board.
func (t *Topology) Contains(n Node) bool {
	_, ok := t.index[n]
	return ok
}

// Neighbors returns the ordered neighbour list of n.
func (t *Topology) Neighbors(n Node) []Node {
	return t.adjacency[n]
}

// Adjacent reports whether a and b share an edge.
func (t *Topology) Adjacent(a, b Node) bool {
	return contains(t.adjacency[a], b)
}

// Edges returns each adjacent pair once, in canonical order.
func (t *Topology) Edges() []Edge {
	return append([]Edge(nil), t.edges...)
}

// Weight returns the score value of e, DefaultWeight when unlisted.
func (t *Topology) Weight(e Edge) int {
	if w, ok := t.weights[NewEdge(e.A, e.B)]; ok {
		return w
	}
	return DefaultWeight
}

func contains(nodes []Node, n Node) bool {
	for _, m := range nodes {
		if m == n {
			return true
		}
	}
	return false
}

var standard = MustNewTopology(standardAdjacency(), standardWeights())

// Standard returns the 18-node Titans board.
func Standard() *Topology {
	return standard
}

func standardAdjacency() map[Node][]Node {
	o := func(i int) Node { return N(Outer, i) }
	m := func(i int) Node { return N(Middle, i) }
	in := func(i int) Node { return N(Inner, i) }

	return map[Node][]Node{
		o(0): {o(1), o(5), m(0)},
		o(1): {o(0), o(2)},
		o(2): {o(1), o(3), m(2)},
		o(3): {o(2), o(4)},
		o(4): {o(3), o(5), m(4)},
		o(5): {o(4), o(0)},

		m(0): {m(1), m(5), o(0)},
		m(1): {m(0), m(2), in(1)},
		m(2): {m(1), m(3), o(2)},
		m(3): {m(2), m(4), in(3)},
		m(4): {m(3), m(5), o(4)},
		m(5): {m(4), m(0), in(5)},

		in(0): {in(1), in(5)},
		in(1): {in(0), in(2), m(1)},
		in(2): {in(1), in(3)},
		in(3): {in(2), in(4), m(3)},
		in(4): {in(3), in(5)},
		in(5): {in(4), in(0), m(5)},
	}
}

func standardWeights() map[Edge]int {
	weights := make(map[Edge]int)
	ring := func(c Circuit, w ...int) {
		for i, weight := range w {
			weights[NewEdge(N(c, i), N(c, (i+1)%NodesPerCircuit))] = weight
		}
	}
	ring(Outer, 2, 1, 1, 3, 2, 1)
	ring(Middle, 4, 5, 6, 4, 5, 6)
	ring(Inner, 9, 8, 8, 9, 8, 8)

	for _, i := range []int{0, 2, 4} {
		weights[NewEdge(N(Outer, i), N(Middle, i))] = 1
	}
	for _, i := range []int{1, 3, 5} {
		weights[NewEdge(N(Middle, i), N(Inner, i))] = 1
	}
	return weights
}
