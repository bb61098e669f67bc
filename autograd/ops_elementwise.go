// SPDX-License-Identifier: MIT

package autograd

import (
	"math"

	"github.com/katalvlaran/causalid/matrix"
)

// binary applies f element-wise to equal-shaped a, b; da and db return the
// local partial derivatives at (x, y, out).
func binary(op string, a, b *Var, f func(x, y float64) float64, da, db func(x, y, z float64) float64) (*Var, error) {
	if err := validateVar(op, a, b); err != nil {
		return nil, err
	}
	if err := matrix.ValidateSameShape(a.Value, b.Value); err != nil {
		return nil, opErrorf(op, err)
	}
	ad, bd := a.Value.Data(), b.Value.Data()
	out, _ := matrix.NewDense(a.Rows(), a.Cols())
	od := out.Data()
	for k := range od {
		od[k] = f(ad[k], bd[k])
	}

	return node(out, func(g []float64) {
		if a.requiresGrad {
			ga := make([]float64, len(g))
			for k := range g {
				ga[k] = g[k] * da(ad[k], bd[k], od[k])
			}
			accumulate(a, ga)
		}
		if b.requiresGrad {
			gb := make([]float64, len(g))
			for k := range g {
				gb[k] = g[k] * db(ad[k], bd[k], od[k])
			}
			accumulate(b, gb)
		}
	}, a, b), nil
}

// unary applies f element-wise; df returns the local derivative at (x, out).
func unary(x *Var, f func(v float64) float64, df func(v, out float64) float64) *Var {
	xd := x.Value.Data()
	out, _ := matrix.NewDense(x.Rows(), x.Cols())
	od := out.Data()
	for k := range od {
		od[k] = f(xd[k])
	}

	return node(out, func(g []float64) {
		gx := make([]float64, len(g))
		for k := range g {
			gx[k] = g[k] * df(xd[k], od[k])
		}
		accumulate(x, gx)
	}, x)
}

func one(_, _, _ float64) float64      { return 1 }
func minusOne(_, _, _ float64) float64 { return -1 }

// Add returns a + b.
func Add(a, b *Var) (*Var, error) {
	return binary("Add", a, b, func(x, y float64) float64 { return x + y }, one, one)
}

// Sub returns a - b.
func Sub(a, b *Var) (*Var, error) {
	return binary("Sub", a, b, func(x, y float64) float64 { return x - y }, one, minusOne)
}

// Mul returns the Hadamard product a ⊙ b.
func Mul(a, b *Var) (*Var, error) {
	return binary("Mul", a, b,
		func(x, y float64) float64 { return x * y },
		func(_, y, _ float64) float64 { return y },
		func(x, _, _ float64) float64 { return x })
}

// Div returns a ⊘ b element-wise. Division by zero follows IEEE-754.
func Div(a, b *Var) (*Var, error) {
	return binary("Div", a, b,
		func(x, y float64) float64 { return x / y },
		func(_, y, _ float64) float64 { return 1 / y },
		func(x, y, _ float64) float64 { return -x / (y * y) })
}

// Scale returns alpha·x.
func Scale(x *Var, alpha float64) *Var {
	return unary(x,
		func(v float64) float64 { return alpha * v },
		func(_, _ float64) float64 { return alpha })
}

// AddScalar returns x + c.
func AddScalar(x *Var, c float64) *Var {
	return unary(x,
		func(v float64) float64 { return v + c },
		func(_, _ float64) float64 { return 1 })
}

// Exp returns exp(x).
func Exp(x *Var) *Var {
	return unary(x, math.Exp, func(_, out float64) float64 { return out })
}

// Log returns the natural logarithm of x.
func Log(x *Var) *Var {
	return unary(x, math.Log, func(v, _ float64) float64 { return 1 / v })
}

// Sqrt returns √x.
func Sqrt(x *Var) *Var {
	return unary(x, math.Sqrt, func(_, out float64) float64 { return 0.5 / out })
}

// Abs returns |x|; the subgradient at 0 is 0.
func Abs(x *Var) *Var {
	return unary(x, math.Abs, func(v, _ float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	})
}

// Square returns x².
func Square(x *Var) *Var {
	return unary(x,
		func(v float64) float64 { return v * v },
		func(v, _ float64) float64 { return 2 * v })
}

// Sigmoid returns 1/(1+exp(-x)).
func Sigmoid(x *Var) *Var {
	return unary(x,
		func(v float64) float64 { return 1 / (1 + math.Exp(-v)) },
		func(_, out float64) float64 { return out * (1 - out) })
}

// LeakyReLU returns x for x > 0 and slope·x otherwise.
func LeakyReLU(x *Var, slope float64) *Var {
	return unary(x,
		func(v float64) float64 {
			if v > 0 {
				return v
			}
			return slope * v
		},
		func(v, _ float64) float64 {
			if v > 0 {
				return 1
			}
			return slope
		})
}

// Tril keeps entries on and below the k-th diagonal; the gradient is masked
// the same way.
func Tril(x *Var, k int) *Var {
	out := matrix.Tril(x.Value, k)
	cols := x.Cols()

	return node(out, func(g []float64) {
		gx := make([]float64, len(g))
		for idx := range g {
			if idx%cols-idx/cols <= k {
				gx[idx] = g[idx]
			}
		}
		accumulate(x, gx)
	}, x)
}

// Transpose returns xᵀ.
func Transpose(x *Var) *Var {
	out, _ := matrix.Transpose(x.Value)
	r, c := x.Rows(), x.Cols()

	return node(out, func(g []float64) {
		// g is c×r; scatter back to r×c.
		gx := make([]float64, len(g))
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				gx[i*c+j] = g[j*r+i]
			}
		}
		accumulate(x, gx)
	}, x)
}

// StraightThrough returns a node whose value is hard while gradients flow to
// soft unchanged.
func StraightThrough(soft *Var, hard *matrix.Dense) (*Var, error) {
	if err := validateVar("StraightThrough", soft); err != nil {
		return nil, err
	}
	if err := matrix.ValidateSameShape(soft.Value, hard); err != nil {
		return nil, opErrorf("StraightThrough", err)
	}

	return node(hard.Clone(), func(g []float64) { accumulate(soft, g) }, soft), nil
}
