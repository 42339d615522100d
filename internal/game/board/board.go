// Package board holds the fixed geometry of the Titans board: three concentric
// hexagonal circuits of six nodes, the adjacency between them and the weight of
// every edge.
package board

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// NodesPerCircuit is the number of nodes on every circuit.
const NodesPerCircuit = 6

var (
	ErrUnknownCircuit = errors.New("unknown circuit")
	ErrBadNode        = errors.New("malformed node id")
)

// Circuit identifies one of the concentric rings.
type Circuit int

const (
	Outer Circuit = iota
	Middle
	Inner
)

// Circuits lists every circuit in unlock order.
var Circuits = []Circuit{Outer, Middle, Inner}

var circuitNames = map[Circuit]string{
	Outer:  "outer",
	Middle: "middle",
	Inner:  "inner",
}

func (c Circuit) String() string {
	if name, ok := circuitNames[c]; ok {
		return name
	}
	return fmt.Sprintf("circuit_%d", int(c))
}

// Next returns the circuit unlocked after c. The second result is false for Inner.
func (c Circuit) Next() (Circuit, bool) {
	switch c {
	case Outer:
		return Middle, true
	case Middle:
		return Inner, true
	default:
		return c, false
	}
}

// ParseCircuit converts "outer", "middle" or "inner" into a Circuit.
func ParseCircuit(s string) (Circuit, error) {
	for c, name := range circuitNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCircuit, s)
}

// Node is a single board position.
type Node struct {
	Circuit Circuit
	Index   int
}

// N is shorthand for building a node.
func N(c Circuit, index int) Node {
	return Node{Circuit: c, Index: index}
}

func (n Node) String() string {
	return n.Circuit.String() + "-" + strconv.Itoa(n.Index)
}

// Valid reports whether n names one of the 18 board positions.
func (n Node) Valid() bool {
	_, known := circuitNames[n.Circuit]
	return known && n.Index >= 0 && n.Index < NodesPerCircuit
}

// Less orders nodes the same way their textual ids sort.
func (n Node) Less(o Node) bool {
	if n.Circuit != o.Circuit {
		return n.Circuit.String() < o.Circuit.String()
	}
	return n.Index < o.Index
}

// ParseNode parses ids of the form "middle-3".
func ParseNode(s string) (Node, error) {
	name, idx, ok := strings.Cut(s, "-")
	if !ok {
		return Node{}, fmt.Errorf("%w: %q", ErrBadNode, s)
	}
	c, err := ParseCircuit(name)
	if err != nil {
		return Node{}, err
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %q", ErrBadNode, s)
	}
	n := Node{Circuit: c, Index: i}
	if !n.Valid() {
		return Node{}, fmt.Errorf("%w: %q", ErrBadNode, s)
	}
	return n, nil
}

// MustParseNode is ParseNode for literals known to be valid.
func MustParseNode(s string) Node {
	n, err := ParseNode(s)
	if err != nil {
		panic(err)
	}
	return n
}

func (n Node) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Node) UnmarshalText(text []byte) error {
	parsed, err := ParseNode(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Edge is an unordered pair of nodes stored in canonical order (A before B).
type Edge struct {
	A Node
	B Node
}

// NewEdge returns the canonical edge between x and y regardless of argument order.
func NewEdge(x, y Node) Edge {
	if y.Less(x) {
		x, y = y, x
	}
	return Edge{A: x, B: y}
}

func (e Edge) String() string {
	return e.A.String() + "-" + e.B.String()
}

// Less orders edges by their first node, then their second.
func (e Edge) Less(o Edge) bool {
	if e.A != o.A {
		return e.A.Less(o.A)
	}
	return e.B.Less(o.B)
}

// Has reports whether n is one of the endpoints.
func (e Edge) Has(n Node) bool {
	return e.A == n || e.B == n
}

func (e Edge) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Edge) UnmarshalText(text []byte) error {
	parsed, err := ParseEdge(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// ParseEdge parses ids of the form "outer-0-outer-1".
func ParseEdge(s string) (Edge, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return Edge{}, fmt.Errorf("%w: edge %q", ErrBadNode, s)
	}
	a, err := ParseNode(parts[0] + "-" + parts[1])
	if err != nil {
		return Edge{}, err
	}
	b, err := ParseNode(parts[2] + "-" + parts[3])
	if err != nil {
		return Edge{}, err
	}
	return NewEdge(a, b), nil
}
