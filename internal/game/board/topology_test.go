package board

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeRoundTrip(t *testing.T) {
	for _, n := range Standard().Nodes() {
		parsed, err := ParseNode(n.String())
		require.NoError(t, err)
		assert.Equal(t, n, parsed)
	}

	for _, bad := range []string{"", "outer", "outer-6", "outer--1", "centre-0", "inner-x"} {
		_, err := ParseNode(bad)
		assert.Error(t, err, bad)
	}
}

func TestEdgeCanonicalOrder(t *testing.T) {
	a := MustParseNode("outer-0")
	b := MustParseNode("middle-0")

	assert.Equal(t, NewEdge(a, b), NewEdge(b, a))
	assert.Equal(t, "middle-0-outer-0", NewEdge(a, b).String())
	assert.Equal(t, "outer-0-outer-1", NewEdge(MustParseNode("outer-1"), a).String())
}

func TestStandardTopologyShape(t *testing.T) {
	topo := Standard()

	assert.Len(t, topo.Nodes(), 18)
	assert.Len(t, topo.Edges(), 24)
	for _, c := range Circuits {
		assert.Len(t, topo.CircuitNodes(c), NodesPerCircuit)
	}

	for _, n := range topo.Nodes() {
		for _, m := range topo.Neighbors(n) {
			assert.True(t, topo.Adjacent(m, n), "%s -> %s not symmetric", n, m)
		}
	}
}

func TestStandardWeights(t *testing.T) {
	topo := Standard()
	cases := map[string]int{
		"outer-0-outer-1":  2,
		"outer-3-outer-4":  3,
		"outer-0-outer-5":  1,
		"middle-2-middle-3": 6,
		"inner-0-inner-1":  9,
		"inner-4-inner-5":  8,
		"middle-0-outer-0": 1,
		"inner-3-middle-3": 1,
	}

	for _, e := range topo.Edges() {
		if want, ok := cases[e.String()]; ok {
			assert.Equal(t, want, topo.Weight(e), e.String())
			delete(cases, e.String())
		}
	}
	assert.Empty(t, cases, "edges missing from topology")

	// query order does not matter
	x, y := MustParseNode("outer-4"), MustParseNode("outer-3")
	assert.Equal(t, topo.Weight(NewEdge(x, y)), topo.Weight(Edge{A: x, B: y}))
}

func TestNewTopologyRejectsAsymmetry(t *testing.T) {
	a, b := N(Outer, 0), N(Outer, 1)

	_, err := NewTopology(map[Node][]Node{a: {b}, b: {}}, nil)
	assert.ErrorIs(t, err, ErrAsymmetricAdjacency)

	_, err = NewTopology(map[Node][]Node{a: {a}}, nil)
	assert.ErrorIs(t, err, ErrSelfLoop)

	_, err = NewTopology(map[Node][]Node{a: {b}}, nil)
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = NewTopology(map[Node][]Node{a: {b}, b: {a}}, map[Edge]int{NewEdge(a, b): 0})
	assert.ErrorIs(t, err, ErrBadWeight)

	c := N(Outer, 2)
	_, err = NewTopology(map[Node][]Node{a: {b}, b: {a}, c: {}}, map[Edge]int{NewEdge(a, c): 3})
	assert.ErrorIs(t, err, ErrBadWeight)
}

func TestUnlistedEdgeUsesDefaultWeight(t *testing.T) {
	a, b := N(Inner, 0), N(Inner, 1)
	topo, err := NewTopology(map[Node][]Node{a: {b}, b: {a}}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultWeight, topo.Weight(NewEdge(a, b)))
}

func TestNodeTextMarshalling(t *testing.T) {
	data, err := json.Marshal(map[Node]string{N(Middle, 4): "red"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"middle-4":"red"}`, string(data))

	var out map[Node]string
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "red", out[N(Middle, 4)])
}

func TestCircuitNext(t *testing.T) {
	next, ok := Outer.Next()
	assert.True(t, ok)
	assert.Equal(t, Middle, next)

	next, ok = Middle.Next()
	assert.True(t, ok)
	assert.Equal(t, Inner, next)

	_, ok = Inner.Next()
	assert.False(t, ok)
}

func TestParseEdge(t *testing.T) {
	e, err := ParseEdge("outer-1-outer-0")
	require.NoError(t, err)
	assert.Equal(t, NewEdge(N(Outer, 0), N(Outer, 1)), e)

	var decoded Edge
	require.NoError(t, decoded.UnmarshalText([]byte("middle-1-inner-1")))
	assert.Equal(t, "inner-1-middle-1", decoded.String())

	_, err = ParseEdge("outer-0")
	assert.ErrorIs(t, err, ErrBadNode)
}
