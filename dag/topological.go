// SPDX-License-Identifier: MIT

package dag

// topoSorter encapsulates state for a topological sort traversal.
type topoSorter struct {
	graph *Graph
	opts  options
	state []int // White, Gray or Black per node
	order []int // post-order sequence
}

// TopologicalSort returns an ordering in which every cause precedes its
// effects. Ties are broken by node index, so an edgeless graph sorts as
// 0..n-1.
//
// Errors: ErrCycleDetected, or the context error on cancellation.
//
// Complexity: O(V + E) time, O(V) memory.
func (g *Graph) TopologicalSort(opts ...Option) ([]int, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	sorter := &topoSorter{
		graph: g,
		opts:  o,
		state: make([]int, g.n),
		order: make([]int, 0, g.n),
	}
	// 1. Drive DFS from every unvisited node, highest first, so that the
	//    reversed post-order prefers low indices.
	for v := g.n - 1; v >= 0; v-- {
		if sorter.state[v] == White {
			if err := sorter.visit(v); err != nil {
				return nil, err
			}
		}
	}
	// 2. Reverse post-order to produce topological order.
	for i, j := 0, len(sorter.order)-1; i < j; i, j = i+1, j-1 {
		sorter.order[i], sorter.order[j] = sorter.order[j], sorter.order[i]
	}

	return sorter.order, nil
}

// visit performs a DFS from v, marking states and detecting cycles.
func (t *topoSorter) visit(v int) error {
	select {
	case <-t.opts.ctx.Done():
		return t.opts.ctx.Err()
	default:
	}
	// A Gray node reached again is a back-edge.
	if t.state[v] == Gray {
		return ErrCycleDetected
	}
	if t.state[v] == Black {
		return nil
	}
	t.state[v] = Gray
	cs := t.graph.children[v]
	for k := len(cs) - 1; k >= 0; k-- {
		if err := t.visit(cs[k]); err != nil {
			return err
		}
	}
	t.state[v] = Black
	t.order = append(t.order, v)

	return nil
}

// CausalOrderings enumerates every topological ordering in lexicographic
// order, up to WithMaxOrderings.
//
// Errors: ErrCycleDetected, or the context error on cancellation.
//
// Complexity: O(V!·V) in the worst case (an edgeless graph).
func (g *Graph) CausalOrderings(opts ...Option) ([][]int, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := g.TopologicalSort(opts...); err != nil {
		return nil, err
	}

	indeg := make([]int, g.n)
	for v := range indeg {
		indeg[v] = len(g.parents[v])
	}
	used := make([]bool, g.n)
	prefix := make([]int, 0, g.n)
	var out [][]int

	var walk func() error
	walk = func() error {
		if err := o.ctx.Err(); err != nil {
			return err
		}
		if o.maxOrder > 0 && len(out) >= o.maxOrder {
			return nil
		}
		if len(prefix) == g.n {
			out = append(out, append([]int(nil), prefix...))
			return nil
		}
		for v := 0; v < g.n; v++ {
			if used[v] || indeg[v] != 0 {
				continue
			}
			used[v] = true
			prefix = append(prefix, v)
			for _, c := range g.children[v] {
				indeg[c]--
			}
			if err := walk(); err != nil {
				return err
			}
			for _, c := range g.children[v] {
				indeg[c]++
			}
			prefix = prefix[:len(prefix)-1]
			used[v] = false
		}
		return nil
	}
	if err := walk(); err != nil {
		return nil, err
	}

	return out, nil
}
