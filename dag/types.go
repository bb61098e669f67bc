// SPDX-License-Identifier: MIT

// Package dag holds the causal graph read off a ground-truth Jacobian and
// the orderings and indirect causes derived from it.
//
// Convention: a nonzero entry J[i][j] (i ≠ j) is the edge j → i, i.e.
// variable j is a direct cause of variable i. Nodes are 0..n-1.
package dag

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/matrix"
)

// Visitation states of the depth-first traversals.
const (
	White = iota // not visited yet
	Gray         // on the recursion stack
	Black        // fully explored
)

// DefaultEdgeEps is the magnitude above which a Jacobian entry is an edge.
const DefaultEdgeEps = 1e-6

var (
	// ErrCycleDetected is returned when the graph is not acyclic.
	ErrCycleDetected = errors.New("dag: cycle detected")

	// ErrNodeOutOfRange is returned for a node outside 0..n-1.
	ErrNodeOutOfRange = errors.New("dag: node out of range")
)

// Edge is a directed edge From → To.
type Edge struct {
	From, To int
}

// String formats the edge as "from->to".
func (e Edge) String() string { return fmt.Sprintf("%d->%d", e.From, e.To) }

// Graph is an immutable directed graph over nodes 0..n-1 with adjacency
// lists kept in ascending order.
type Graph struct {
	n        int
	children [][]int
	parents  [][]int
}

// FromAdjacency reads the edges of J: |J[i][j]| > eps with i ≠ j gives j → i.
// Errors: matrix.ErrNonSquare, matrix.ErrNilMatrix.
func FromAdjacency(J *matrix.Dense, eps float64) (*Graph, error) {
	if err := matrix.ValidateSquare(J); err != nil {
		return nil, fmt.Errorf("dag.FromAdjacency: %w", err)
	}
	n := J.Rows()
	g := &Graph{n: n, children: make([][]int, n), parents: make([][]int, n)}
	data := J.Data()
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			if i != j && math.Abs(data[i*n+j]) > eps {
				g.children[j] = append(g.children[j], i)
				g.parents[i] = append(g.parents[i], j)
			}
		}
	}
	return g, nil
}

// NumNodes returns n.
func (g *Graph) NumNodes() int { return g.n }

// Children returns the direct effects of v.
func (g *Graph) Children(v int) []int { return append([]int(nil), g.children[v]...) }

// Parents returns the direct causes of v.
func (g *Graph) Parents(v int) []int { return append([]int(nil), g.parents[v]...) }

// HasEdge reports whether from → to exists.
func (g *Graph) HasEdge(from, to int) bool {
	if from < 0 || from >= g.n || to < 0 || to >= g.n {
		return false
	}
	for _, c := range g.children[from] {
		if c == to {
			return true
		}
	}

	return false
}

// Edges lists every edge ordered by (From, To).
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, cs := range g.children {
		for _, to := range cs {
			out = append(out, Edge{From: from, To: to})
		}
	}

	return out
}

// Option configures the traversals.
type Option func(*options)

type options struct {
	ctx      context.Context
	maxOrder int
}

func defaultOptions() options {
	return options{ctx: context.Background()}
}

// WithCancelContext sets the cancellation context. A nil context has no effect.
func WithCancelContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithMaxOrderings caps CausalOrderings; 0 means no cap.
func WithMaxOrderings(n int) Option { return func(o *options) { o.maxOrder = n } }
