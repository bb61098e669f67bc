// SPDX-License-Identifier: MIT

package autograd

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/causalid/matrix"
)

// MatMul returns the matrix product a·b.
// Backward: ∂a = g·bᵀ, ∂b = aᵀ·g.
func MatMul(a, b *Var) (*Var, error) {
	if err := validateVar("MatMul", a, b); err != nil {
		return nil, err
	}
	out, err := matrix.Mul(a.Value, b.Value)
	if err != nil {
		return nil, opErrorf("MatMul", err)
	}

	return node(out, func(g []float64) {
		gm, _ := matrix.NewFromData(out.Rows(), out.Cols(), g)
		if a.requiresGrad {
			bt, _ := matrix.Transpose(b.Value)
			ga, _ := matrix.Mul(gm, bt)
			accumulate(a, ga.Data())
		}
		if b.requiresGrad {
			at, _ := matrix.Transpose(a.Value)
			gb, _ := matrix.Mul(at, gm)
			accumulate(b, gb.Data())
		}
	}, a, b), nil
}

// BroadcastTo expands a 1×1, rows×1 or 1×cols operand to rows×cols.
// Backward sums the gradient over the expanded axes.
func BroadcastTo(x *Var, rows, cols int) (*Var, error) {
	if err := validateVar("BroadcastTo", x); err != nil {
		return nil, err
	}
	xr, xc := x.Rows(), x.Cols()
	rowOK := xr == rows || xr == 1
	colOK := xc == cols || xc == 1
	if !rowOK || !colOK {
		return nil, opErrorf("BroadcastTo", ErrBroadcast)
	}
	if xr == rows && xc == cols {
		return x, nil
	}
	out, err := matrix.NewDense(rows, cols)
	if err != nil {
		return nil, opErrorf("BroadcastTo", err)
	}
	xd, od := x.Value.Data(), out.Data()
	src := func(i, j int) int {
		if xr == 1 {
			i = 0
		}
		if xc == 1 {
			j = 0
		}
		return i*xc + j
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			od[i*cols+j] = xd[src(i, j)]
		}
	}

	return node(out, func(g []float64) {
		gx := make([]float64, len(xd))
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				gx[src(i, j)] += g[i*cols+j]
			}
		}
		accumulate(x, gx)
	}, x), nil
}

// Sum returns the 1×1 sum of all entries.
func Sum(x *Var) *Var {
	out, _ := matrix.NewFromData(1, 1, []float64{floats.Sum(x.Value.Data())})

	return node(out, func(g []float64) {
		gx := make([]float64, x.Value.Len())
		for k := range gx {
			gx[k] = g[0]
		}
		accumulate(x, gx)
	}, x)
}

// Mean returns the 1×1 arithmetic mean of all entries.
func Mean(x *Var) *Var {
	return Scale(Sum(x), 1/float64(x.Value.Len()))
}

// RowSums returns the rows×1 vector of row sums.
func RowSums(x *Var) *Var {
	r, c := x.Rows(), x.Cols()
	xd := x.Value.Data()
	out, _ := matrix.NewDense(r, 1)
	od := out.Data()
	for i := 0; i < r; i++ {
		od[i] = floats.Sum(xd[i*c : (i+1)*c])
	}

	return node(out, func(g []float64) {
		gx := make([]float64, len(xd))
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				gx[i*c+j] = g[i]
			}
		}
		accumulate(x, gx)
	}, x)
}

// ColSums returns the 1×cols vector of column sums.
func ColSums(x *Var) *Var {
	r, c := x.Rows(), x.Cols()
	xd := x.Value.Data()
	out, _ := matrix.NewDense(1, c)
	od := out.Data()
	for i := 0; i < r; i++ {
		floats.Add(od, xd[i*c:(i+1)*c])
	}

	return node(out, func(g []float64) {
		gx := make([]float64, len(xd))
		for i := 0; i < r; i++ {
			copy(gx[i*c:(i+1)*c], g)
		}
		accumulate(x, gx)
	}, x)
}

// Diag turns an n×1 or 1×n vector into the n×n diagonal matrix.
func Diag(v *Var) (*Var, error) {
	if err := validateVar("Diag", v); err != nil {
		return nil, err
	}
	if v.Rows() != 1 && v.Cols() != 1 {
		return nil, opErrorf("Diag", matrix.ErrDimensionMismatch)
	}
	out, err := matrix.NewDiag(v.Value.Data())
	if err != nil {
		return nil, opErrorf("Diag", err)
	}
	n := v.Value.Len()

	return node(out, func(g []float64) {
		gv := make([]float64, n)
		for i := 0; i < n; i++ {
			gv[i] = g[i*n+i]
		}
		accumulate(v, gv)
	}, v), nil
}

// DiagPart returns the main diagonal of a square matrix as an n×1 vector.
func DiagPart(m *Var) (*Var, error) {
	if err := validateVar("DiagPart", m); err != nil {
		return nil, err
	}
	d, err := matrix.DiagOf(m.Value)
	if err != nil {
		return nil, opErrorf("DiagPart", err)
	}
	n := len(d)
	out, _ := matrix.NewFromData(n, 1, d)

	return node(out, func(g []float64) {
		gm := make([]float64, n*n)
		for i := 0; i < n; i++ {
			gm[i*n+i] = g[i]
		}
		accumulate(m, gm)
	}, m), nil
}

// Norm returns the 1×1 Frobenius norm. The gradient at the origin is 0.
func Norm(x *Var) *Var {
	xd := x.Value.Data()
	n := floats.Norm(xd, 2)
	out, _ := matrix.NewFromData(1, 1, []float64{n})

	return node(out, func(g []float64) {
		if n == 0 || math.IsInf(n, 0) {
			return
		}
		gx := make([]float64, len(xd))
		floats.ScaleTo(gx, g[0]/n, xd)
		accumulate(x, gx)
	}, x)
}
