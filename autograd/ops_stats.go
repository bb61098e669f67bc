// SPDX-License-Identifier: MIT

package autograd

// normEps keeps NormalizeRows finite on constant rows.
const normEps = 1e-12

// CenterRows subtracts each row's mean from the row.
func CenterRows(x *Var) (*Var, error) {
	mean := Scale(RowSums(x), 1/float64(x.Cols()))
	b, err := BroadcastTo(mean, x.Rows(), x.Cols())
	if err != nil {
		return nil, opErrorf("CenterRows", err)
	}

	return Sub(x, b)
}

// NormalizeRows scales each row to unit Euclidean norm.
func NormalizeRows(x *Var) (*Var, error) {
	norms := Sqrt(AddScalar(RowSums(Square(x)), normEps))
	b, err := BroadcastTo(norms, x.Rows(), x.Cols())
	if err != nil {
		return nil, opErrorf("NormalizeRows", err)
	}

	return Div(x, b)
}

// RowCorrelation returns the Pearson correlation between every row of x and
// every row of y (variables in rows, samples in columns).
func RowCorrelation(x, y *Var) (*Var, error) {
	if err := validateVar("RowCorrelation", x, y); err != nil {
		return nil, err
	}
	xs, err := standardize(x)
	if err != nil {
		return nil, opErrorf("RowCorrelation", err)
	}
	ys, err := standardize(y)
	if err != nil {
		return nil, opErrorf("RowCorrelation", err)
	}

	return MatMul(xs, Transpose(ys))
}

func standardize(x *Var) (*Var, error) {
	c, err := CenterRows(x)
	if err != nil {
		return nil, err
	}

	return NormalizeRows(c)
}
