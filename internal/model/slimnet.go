package model

import (
	"math"
	"math/rand"

	"slimforge/internal/params"
)

// SlimNet is a per-channel affine layer (bn1) feeding a linear softmax
// classifier (fc). The bn1 weights act as channel scales that a sparsity
// penalty can drive towards zero.
type SlimNet struct {
	numClasses int
	inputSize  int
	lr         float64

	bnWeight *params.Param
	bnBias   *params.Param
	fcWeight *params.Param
	fcBias   *params.Param
}

// NewSlimNet constructs the model with random fc initialization and an
// identity bn1.
func NewSlimNet(numClasses, inputSize int, lr float64, seed int64) *SlimNet {
	if numClasses <= 0 {
		numClasses = 10
	}
	if inputSize <= 0 {
		inputSize = 64
	}
	if lr <= 0 {
		lr = 0.01
	}
	m := &SlimNet{
		numClasses: numClasses,
		inputSize:  inputSize,
		lr:         lr,
		bnWeight:   newParam("bn1.weight", params.RoleWeight, params.ScopeBN1, inputSize),
		bnBias:     newParam("bn1.bias", params.RoleBias, params.ScopeBN1, inputSize),
		fcWeight:   newParam("fc.weight", params.RoleWeight, "", numClasses, inputSize),
		fcBias:     newParam("fc.bias", params.RoleBias, "", numClasses),
	}
	for i := range m.bnWeight.Data {
		m.bnWeight.Data[i] = 1
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range m.fcWeight.Data {
		m.fcWeight.Data[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return m
}

func newParam(name string, role params.Role, scope string, shape ...int) *params.Param {
	p := &params.Param{
		Name:      name,
		Shape:     shape,
		Trainable: true,
		Role:      role,
		NormScope: scope,
	}
	p.Data = make([]float64, p.Numel())
	return p
}

// NamedParameters implements params.Module.
func (m *SlimNet) NamedParameters() []*params.Param {
	return []*params.Param{m.bnWeight, m.bnBias, m.fcWeight, m.fcBias}
}

// TrainStep executes one SGD step per sample and returns average loss.
// Frozen parameters are left untouched.
func (m *SlimNet) TrainStep(batch Batch) float64 {
	if len(batch.Inputs) == 0 {
		return 0
	}
	hidden := make([]float64, m.inputSize)
	dHidden := make([]float64, m.inputSize)
	totalLoss := 0.0
	for i, input := range batch.Inputs {
		if len(input) != m.inputSize {
			continue
		}
		label := WrapLabel(batch.Labels[i], m.numClasses)

		m.scale(input, hidden)
		probs := softmax(m.logits(hidden))
		totalLoss += -math.Log(math.Max(probs[label], 1e-9))

		probs[label] -= 1
		for j := range dHidden {
			dHidden[j] = 0
		}
		w := m.fcWeight.Data
		for c := 0; c < m.numClasses; c++ {
			grad := probs[c]
			wStart := c * m.inputSize
			for j := 0; j < m.inputSize; j++ {
				dHidden[j] += grad * w[wStart+j]
			}
		}

		if m.fcBias.Trainable {
			for c := 0; c < m.numClasses; c++ {
				m.fcBias.Data[c] -= m.lr * probs[c]
			}
		}
		if m.fcWeight.Trainable {
			for c := 0; c < m.numClasses; c++ {
				grad := probs[c]
				wStart := c * m.inputSize
				for j := 0; j < m.inputSize; j++ {
					w[wStart+j] -= m.lr * grad * hidden[j]
				}
			}
		}
		if m.bnWeight.Trainable {
			for j := 0; j < m.inputSize; j++ {
				m.bnWeight.Data[j] -= m.lr * dHidden[j] * input[j]
			}
		}
		if m.bnBias.Trainable {
			for j := 0; j < m.inputSize; j++ {
				m.bnBias.Data[j] -= m.lr * dHidden[j]
			}
		}
	}
	return totalLoss / float64(len(batch.Inputs))
}

// Predict returns the arg-max class for input, or -1 on a size mismatch.
func (m *SlimNet) Predict(input []float64) int {
	if len(input) != m.inputSize {
		return -1
	}
	hidden := make([]float64, m.inputSize)
	m.scale(input, hidden)
	logits := m.logits(hidden)
	best := 0
	for c, v := range logits {
		if v > logits[best] {
			best = c
		}
	}
	return best
}

func (m *SlimNet) scale(input, out []float64) {
	for j, x := range input {
		out[j] = m.bnWeight.Data[j]*x + m.bnBias.Data[j]
	}
}

func (m *SlimNet) logits(hidden []float64) []float64 {
	logits := make([]float64, m.numClasses)
	for c := 0; c < m.numClasses; c++ {
		sum := m.fcBias.Data[c]
		wStart := c * m.inputSize
		for j := 0; j < m.inputSize; j++ {
			sum += m.fcWeight.Data[wStart+j] * hidden[j]
		}
		logits[c] = sum
	}
	return logits
}

// WrapLabel maps any label, negative ones included, into [0, numClasses)
// by modular wrap.
func WrapLabel(label, numClasses int) int {
	if label < 0 || label >= numClasses {
		label = label % numClasses
		if label < 0 {
			label += numClasses
		}
	}
	return label
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}
