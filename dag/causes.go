// SPDX-License-Identifier: MIT

package dag

import (
	"math"

	"github.com/katalvlaran/causalid/matrix"
)

// IndirectCause is a pair connected only through intermediate variables:
// no edge From → To, but at least one directed path of length ≥ 2.
type IndirectCause struct {
	Edge
	// Paths lists every simple path From → ... → To, endpoints included.
	Paths [][]int
}

// IndirectCauses returns every indirect cause ordered by (From, To).
//
// Errors: ErrCycleDetected.
func (g *Graph) IndirectCauses() ([]IndirectCause, error) {
	if _, err := g.TopologicalSort(); err != nil {
		return nil, err
	}
	hops, err := g.Hops()
	if err != nil {
		return nil, err
	}
	var out []IndirectCause
	for from := 0; from < g.n; from++ {
		for to := 0; to < g.n; to++ {
			if h, _ := hops.At(from, to); h < 2 || math.IsInf(h, 1) {
				continue
			}
			if paths := g.Paths(from, to); len(paths) > 0 {
				out = append(out, IndirectCause{Edge: Edge{From: from, To: to}, Paths: paths})
			}
		}
	}

	return out, nil
}

// Hops returns the shortest path length, in edges, for every ordered pair
// (row = from, col = to). Unreachable pairs hold +Inf.
func (g *Graph) Hops() (*matrix.Dense, error) {
	adj, err := matrix.NewDense(g.n, g.n)
	if err != nil {
		return nil, err
	}
	for from, cs := range g.children {
		for _, to := range cs {
			_ = adj.Set(from, to, 1)
		}
	}

	return matrix.ShortestHops(adj, 0)
}

// Paths enumerates every simple directed path from → to.
func (g *Graph) Paths(from, to int) [][]int {
	if from < 0 || from >= g.n || to < 0 || to >= g.n || from == to {
		return nil
	}
	var out [][]int
	path := []int{from}
	onPath := make([]bool, g.n)
	onPath[from] = true
	var walk func(v int)
	walk = func(v int) {
		for _, c := range g.children[v] {
			if onPath[c] {
				continue
			}
			path = append(path, c)
			if c == to {
				out = append(out, append([]int(nil), path...))
			} else {
				onPath[c] = true
				walk(c)
				onPath[c] = false
			}
			path = path[:len(path)-1]
		}
	}
	walk(from)

	return out
}

// IsIndirect reports whether e is among causes.
func IsIndirect(causes []IndirectCause, e Edge) bool {
	for _, c := range causes {
		if c.Edge == e {
			return true
		}
	}

	return false
}
