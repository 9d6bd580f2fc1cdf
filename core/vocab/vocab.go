// Package vocab defines the fixed behavioral-assertion vocabulary an agent's
// identity state is built over: an ordered list of names plus their
// pairwise coupling matrix. Immutable once constructed.
package vocab

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MaxDimensions is the hard cap on vocabulary size (§3: exact Shapley
// requires N <= 16).
const MaxDimensions = 16

// Vocabulary is the fixed ordered set of behavioral assertions and their
// symmetric coupling matrix. Born at first initialize, lives for the
// agent's lifetime.
type Vocabulary struct {
	names     []string
	adjacency *mat.SymDense // N x N, zero diagonal, values in [0,1]
}

// New builds a Vocabulary from an ordered list of names and a flat
// row-major N*N adjacency array (§6: "Flat row-major Float64 array of
// length N^2"). It rejects N > MaxDimensions, non-square input, a
// non-zero diagonal, or asymmetric entries.
func New(names []string, flatAdjacency []float64) (*Vocabulary, error) {
	n := len(names)
	if n == 0 {
		return &Vocabulary{names: nil, adjacency: mat.NewSymDense(0, nil)}, nil
	}
	if n > MaxDimensions {
		return nil, fmt.Errorf("vocab: N=%d exceeds max dimensions %d", n, MaxDimensions)
	}
	if len(flatAdjacency) != n*n {
		return nil, fmt.Errorf("vocab: adjacency length %d does not match N*N=%d", len(flatAdjacency), n*n)
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := flatAdjacency[i*n+j]
			if i == j && v != 0 {
				return nil, fmt.Errorf("vocab: adjacency diagonal at %d must be zero, got %v", i, v)
			}
			if v < 0 || v > 1 {
				return nil, fmt.Errorf("vocab: adjacency[%d,%d]=%v out of [0,1]", i, j, v)
			}
			other := flatAdjacency[j*n+i]
			if other != v {
				return nil, fmt.Errorf("vocab: adjacency not symmetric at (%d,%d): %v != %v", i, j, v, other)
			}
			sym.SetSym(i, j, v)
		}
	}

	cp := make([]string, n)
	copy(cp, names)
	return &Vocabulary{names: cp, adjacency: sym}, nil
}

// N returns the vocabulary dimension.
func (v *Vocabulary) N() int {
	if v == nil {
		return 0
	}
	return len(v.names)
}

// Names returns a defensive copy of the ordered assertion names.
func (v *Vocabulary) Names() []string {
	cp := make([]string, len(v.names))
	copy(cp, v.names)
	return cp
}

// Adjacency returns the underlying coupling matrix (read-only use expected;
// gonum's SymDense aliases internal storage, so callers must not mutate it).
func (v *Vocabulary) Adjacency() *mat.SymDense {
	return v.adjacency
}

// Laplacian returns the graph Laplacian L = deg(A) - A.
func (v *Vocabulary) Laplacian() *mat.SymDense {
	n := v.N()
	l := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		deg := 0.0
		for j := 0; j < n; j++ {
			if j != i {
				deg += v.adjacency.At(i, j)
			}
		}
		l.SetSym(i, i, deg)
		for j := i + 1; j < n; j++ {
			l.SetSym(i, j, -v.adjacency.At(i, j))
		}
	}
	return l
}
