// Package nn holds the small dense networks used by the policy: tanh hidden
// layers, a linear head, batched backprop and an Adam optimiser.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

var ErrShape = errors.New("weight shape mismatch")

// Layer is a dense layer computing x*W + b. W is in×out.
type Layer struct {
	W *mat.Dense
	B []float64
}

func (l *Layer) dims() (int, int) {
	return l.W.Dims()
}

type MLP struct {
	Layers []*Layer
}

// LayerWeights is the serialisable form of one Layer. W is stored row-major,
// one row per input unit.
type LayerWeights struct {
	W [][]float64 `json:"w"`
	B []float64   `json:"b"`
}

// NewMLP builds a network with the given layer sizes, e.g. [4, 64, 64, 2].
// Hidden layers use orthogonal init with gain sqrt(2); the output layer
// uses outGain. Biases start at zero.
func NewMLP(sizes []int, outGain float64, rng *rand.Rand) (*MLP, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("mlp needs at least input and output sizes, got %v", sizes)
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("mlp layer sizes must be positive, got %v", sizes)
		}
	}
	m := &MLP{Layers: make([]*Layer, 0, len(sizes)-1)}
	for i := 0; i < len(sizes)-1; i++ {
		gain := math.Sqrt2
		if i == len(sizes)-2 {
			gain = outGain
		}
		m.Layers = append(m.Layers, &Layer{
			W: orthogonal(sizes[i], sizes[i+1], gain, rng),
			B: make([]float64, sizes[i+1]),
		})
	}
	return m, nil
}

func orthogonal(rows, cols int, gain float64, rng *rand.Rand) *mat.Dense {
	r, c := rows, cols
	if r < c {
		r, c = c, r
	}
	a := mat.NewDense(r, c, nil)
	a.Apply(func(_, _ int, _ float64) float64 { return rng.NormFloat64() }, a)

	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)

	w := mat.NewDense(rows, cols, nil)
	if rows >= cols {
		w.Copy(q.Slice(0, r, 0, c))
	} else {
		w.Copy(q.Slice(0, r, 0, c).T())
	}
	w.Scale(gain, w)
	return w
}

// Sizes returns the layer widths including input and output.
func (m *MLP) Sizes() []int {
	in, _ := m.Layers[0].dims()
	sizes := []int{in}
	for _, l := range m.Layers {
		_, out := l.dims()
		sizes = append(sizes, out)
	}
	return sizes
}

// Trace keeps the activations of a forward pass for Backward.
type Trace struct {
	acts []*mat.Dense
}

// Forward runs a batch (one row per sample) through the network.
func (m *MLP) Forward(x mat.Matrix) (*mat.Dense, *Trace) {
	a := mat.DenseCopyOf(x)
	tr := &Trace{acts: []*mat.Dense{a}}
	last := len(m.Layers) - 1
	for i, l := range m.Layers {
		rows, _ := a.Dims()
		_, out := l.dims()
		z := mat.NewDense(rows, out, nil)
		z.Mul(a, l.W)
		hidden := i < last
		b := l.B
		z.Apply(func(_, j int, v float64) float64 {
			v += b[j]
			if hidden {
				return math.Tanh(v)
			}
			return v
		}, z)
		tr.acts = append(tr.acts, z)
		a = z
	}
	return a, tr
}

// Predict runs a single observation and returns the output row.
func (m *MLP) Predict(x []float64) []float64 {
	out, _ := m.Forward(mat.NewDense(1, len(x), append([]float64(nil), x...)))
	return mat.Row(nil, 0, out)
}

// Grads mirrors the layout of an MLP's parameters.
type Grads struct {
	W []*mat.Dense
	B [][]float64
}

// Backward propagates dOut (same shape as the forward output) and returns
// the gradient of every weight and bias, summed over the batch.
func (m *MLP) Backward(tr *Trace, dOut mat.Matrix) *Grads {
	n := len(m.Layers)
	g := &Grads{W: make([]*mat.Dense, n), B: make([][]float64, n)}
	delta := mat.DenseCopyOf(dOut)
	for i := n - 1; i >= 0; i-- {
		l := m.Layers[i]
		in, out := l.dims()
		if i < n-1 {
			act := tr.acts[i+1]
			delta.Apply(func(r, c int, v float64) float64 {
				a := act.At(r, c)
				return v * (1 - a*a)
			}, delta)
		}
		gw := mat.NewDense(in, out, nil)
		gw.Mul(tr.acts[i].T(), delta)
		gb := make([]float64, out)
		for c := range gb {
			gb[c] = mat.Sum(delta.ColView(c))
		}
		g.W[i], g.B[i] = gw, gb
		if i > 0 {
			rows, _ := delta.Dims()
			next := mat.NewDense(rows, in, nil)
			next.Mul(delta, l.W.T())
			delta = next
		}
	}
	return g
}

// Params returns slices aliasing the network's weights, in the same order as
// Grads.Flat.
func (m *MLP) Params() [][]float64 {
	ps := make([][]float64, 0, 2*len(m.Layers))
	for _, l := range m.Layers {
		ps = append(ps, l.W.RawMatrix().Data, l.B)
	}
	return ps
}

func (g *Grads) Flat() [][]float64 {
	gs := make([][]float64, 0, 2*len(g.W))
	for i := range g.W {
		gs = append(gs, g.W[i].RawMatrix().Data, g.B[i])
	}
	return gs
}

func (m *MLP) Export() []LayerWeights {
	ws := make([]LayerWeights, len(m.Layers))
	for i, l := range m.Layers {
		in, _ := l.dims()
		rows := make([][]float64, in)
		for r := range rows {
			rows[r] = mat.Row(nil, r, l.W)
		}
		ws[i] = LayerWeights{W: rows, B: append([]float64(nil), l.B...)}
	}
	return ws
}

// FromWeights rebuilds a network from exported weights, checking that
// consecutive layers line up.
func FromWeights(ws []LayerWeights) (*MLP, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrShape)
	}
	m := &MLP{Layers: make([]*Layer, 0, len(ws))}
	prevOut := -1
	for i, lw := range ws {
		in := len(lw.W)
		if in == 0 {
			return nil, fmt.Errorf("%w: layer %d has no rows", ErrShape, i)
		}
		out := len(lw.W[0])
		if out == 0 || len(lw.B) != out {
			return nil, fmt.Errorf("%w: layer %d has %d columns and %d biases", ErrShape, i, out, len(lw.B))
		}
		if prevOut >= 0 && in != prevOut {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer emits %d", ErrShape, i, in, prevOut)
		}
		w := mat.NewDense(in, out, nil)
		for r, row := range lw.W {
			if len(row) != out {
				return nil, fmt.Errorf("%w: layer %d row %d has %d columns, want %d", ErrShape, i, r, len(row), out)
			}
			w.SetRow(r, row)
		}
		m.Layers = append(m.Layers, &Layer{W: w, B: append([]float64(nil), lw.B...)})
		prevOut = out
	}
	return m, nil
}
