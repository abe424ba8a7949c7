package search

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// svdProjection maps full TF-IDF vectors into the truncated singular basis
// of the corpus. Reduction is purely a memory and latency measure for large
// corpora; small corpora are scored in the full space.
type svdProjection struct {
	basis *mat.Dense // features x components
}

// reduceRows factorizes the corpus matrix and returns the projection along
// with the already-reduced corpus rows.
func reduceRows(rows [][]float64, components int) (*svdProjection, [][]float64, error) {
	n := len(rows)
	d := len(rows[0])

	k := components
	if k > n {
		k = n
	}
	if k > d {
		k = d
	}
	if k <= 0 {
		return nil, rows, nil
	}

	a := mat.NewDense(n, d, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, nil, fmt.Errorf("svd factorization failed for %dx%d corpus matrix", n, d)
	}

	var v mat.Dense
	svd.VTo(&v)
	basis := mat.DenseCopyOf(v.Slice(0, d, 0, k))

	var reduced mat.Dense
	reduced.Mul(a, basis)

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &reduced)
	}
	return &svdProjection{basis: basis}, out, nil
}

// project maps one full-space vector into the reduced basis.
func (p *svdProjection) project(vec []float64) []float64 {
	d, k := p.basis.Dims()
	if len(vec) != d {
		return make([]float64, k)
	}

	var out mat.Dense
	out.Mul(mat.NewDense(1, d, vec), p.basis)
	return mat.Row(nil, 0, &out)
}
