// SPDX-License-Identifier: MIT

package autograd

import (
	"sync/atomic"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/causalid/matrix"
)

// gradEnabled controls whether ops record backward closures.
var gradEnabled atomic.Bool

func init() { gradEnabled.Store(true) }

// GradEnabled reports whether ops currently build the backward graph.
func GradEnabled() bool { return gradEnabled.Load() }

// NoGrad runs fn with graph construction disabled and restores the previous
// mode afterwards, also when fn fails.
func NoGrad(fn func() error) error {
	prev := gradEnabled.Swap(false)
	defer gradEnabled.Store(prev)

	return fn()
}

// Var is a node of the computation graph.
// Value is owned by the node; ops never mutate their inputs' values.
type Var struct {
	Value *matrix.Dense
	Grad  *matrix.Dense

	requiresGrad bool
	parents      []*Var
	backFn       func()
}

// Param wraps m as a trainable leaf with a zeroed gradient buffer.
func Param(m *matrix.Dense) *Var {
	return &Var{Value: m, Grad: zerosLike(m), requiresGrad: true}
}

// Const wraps m as a leaf that never receives gradients.
func Const(m *matrix.Dense) *Var {
	return &Var{Value: m}
}

// Scalar returns a 1×1 constant.
func Scalar(v float64) *Var {
	m, _ := matrix.NewFromData(1, 1, []float64{v})

	return Const(m)
}

// Item returns the first element; intended for 1×1 values.
func (v *Var) Item() float64 { return v.Value.Data()[0] }

// Rows returns the row count of Value.
func (v *Var) Rows() int { return v.Value.Rows() }

// Cols returns the column count of Value.
func (v *Var) Cols() int { return v.Value.Cols() }

// RequiresGrad reports whether gradients flow into v.
func (v *Var) RequiresGrad() bool { return v.requiresGrad }

// ZeroGrad clears the accumulated gradient.
func (v *Var) ZeroGrad() {
	if v.Grad != nil {
		v.Grad.Fill(0)
	}
}

// Detach returns a Const holding a copy of v's value.
func (v *Var) Detach() *Var { return Const(v.Value.Clone()) }

func zerosLike(m *matrix.Dense) *matrix.Dense {
	z, _ := matrix.NewDense(m.Rows(), m.Cols())

	return z
}

// accumulate adds g into p.Grad when p takes part in differentiation.
func accumulate(p *Var, g []float64) {
	if !p.requiresGrad {
		return
	}
	if p.Grad == nil {
		p.Grad = zerosLike(p.Value)
	}
	floats.Add(p.Grad.Data(), g)
}

// node builds the result Var. back receives the output gradient buffer and
// must only read it.
func node(value *matrix.Dense, back func(g []float64), parents ...*Var) *Var {
	out := &Var{Value: value}
	if !gradEnabled.Load() {
		return out
	}
	for _, p := range parents {
		if p.requiresGrad {
			out.requiresGrad = true
			break
		}
	}
	if !out.requiresGrad {
		return out
	}
	out.parents = parents
	out.backFn = func() {
		if out.Grad != nil {
			back(out.Grad.Data())
		}
	}

	return out
}

// Backward seeds root with gradient 1 and propagates it to every Param
// reachable from root. A root that does not depend on any Param is a no-op.
//
// Complexity: O(V+E) graph walk plus the cost of each backward closure.
func Backward(root *Var) error {
	if root == nil || root.Value == nil {
		return opErrorf("Backward", ErrNilVar)
	}
	if root.Value.Len() != 1 {
		return opErrorf("Backward", ErrNotScalar)
	}
	if !root.requiresGrad {
		return nil
	}

	topo := make([]*Var, 0, 64)
	visited := make(map[*Var]bool)
	var build func(v *Var)
	build = func(v *Var) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, p := range v.parents {
			build(p)
		}
		topo = append(topo, v)
	}
	build(root)

	if root.Grad == nil {
		root.Grad = zerosLike(root.Value)
	}
	root.Grad.Data()[0] += 1.0

	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].backFn != nil {
			topo[i].backFn()
		}
	}

	return nil
}

func validateVar(op string, vs ...*Var) error {
	for _, v := range vs {
		if v == nil || v.Value == nil {
			return opErrorf(op, ErrNilVar)
		}
	}

	return nil
}
