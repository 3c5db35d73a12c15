package bidpredict

import (
	"fmt"
	"math"
)

// Regressor is a frozen single-output regression model. Implementations must
// be safe for concurrent Predict calls; the service shares one instance
// across every request of a snapshot's lifetime.
type Regressor interface {
	// Predict returns one value per input row.
	Predict(rows [][]float64) ([]float64, error)
	// InputWidth returns the feature width the model was fitted for.
	InputWidth() int
}

// MLP is a fully connected feed-forward network with ReLU hidden activations
// and an identity output, evaluated in float64. All weights are frozen at
// load time.
type MLP struct {
	layers []mlpLayer
	width  int
}

type mlpLayer struct {
	// weights is laid out [out][in]; bias has one entry per output unit.
	weights [][]float64
	bias    []float64
	relu    bool
}

// MLPParams is the artifact encoding of a fitted network. Layers run from
// input to output; the last layer is linear, every earlier one is ReLU.
type MLPParams struct {
	InputWidth int             `json:"inputWidth"`
	Layers     []MLPLayerParam `json:"layers"`
}

// MLPLayerParam holds one dense layer's weights, [out][in], plus biases.
type MLPLayerParam struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// NewMLP validates the layer chain and builds a model. Widths must agree
// from layer to layer, and the final layer must have exactly one output.
func NewMLP(p MLPParams) (*MLP, error) {
	if p.InputWidth <= 0 {
		return nil, fmt.Errorf("mlp: input width %d", p.InputWidth)
	}
	if len(p.Layers) == 0 {
		return nil, fmt.Errorf("mlp: no layers")
	}
	m := &MLP{width: p.InputWidth}
	in := p.InputWidth
	for i, layer := range p.Layers {
		out := len(layer.Weights)
		if out == 0 || len(layer.Bias) != out {
			return nil, fmt.Errorf("mlp: layer %d has %d units and %d biases", i, out, len(layer.Bias))
		}
		for u, row := range layer.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("mlp: layer %d unit %d has %d weights, expected %d", i, u, len(row), in)
			}
		}
		m.layers = append(m.layers, mlpLayer{
			weights: layer.Weights,
			bias:    layer.Bias,
			relu:    i < len(p.Layers)-1,
		})
		in = out
	}
	if in != 1 {
		return nil, fmt.Errorf("mlp: final layer has %d outputs, expected 1", in)
	}
	return m, nil
}

// InputWidth implements Regressor.
func (m *MLP) InputWidth() int { return m.width }

// Predict implements Regressor with a straightforward dense forward pass.
func (m *MLP) Predict(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != m.width {
			return nil, fmt.Errorf("mlp: row %d has width %d, model expects %d", i, len(row), m.width)
		}
		act := row
		for _, layer := range m.layers {
			next := make([]float64, len(layer.weights))
			for u, w := range layer.weights {
				sum := layer.bias[u]
				for j, v := range act {
					sum += w[j] * v
				}
				if layer.relu && sum < 0 {
					sum = 0
				}
				next[u] = sum
			}
			act = next
		}
		v := act[0]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("mlp: row %d produced non-finite output", i)
		}
		out[i] = v
	}
	return out, nil
}
