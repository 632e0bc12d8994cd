package model

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrInput reports a batch that does not fit the model's shape.
var ErrInput = errors.New("model: input does not match model shape")

// Options configures a SoftmaxClassifier.
type Options struct {
	NumClasses  int
	InputSize   int
	Schedule    Schedule
	Momentum    float64
	WeightDecay float64
	Seed        int64
}

// SoftmaxClassifier is a linear classifier with softmax cross-entropy loss,
// trained with momentum SGD and L2 weight decay.
type SoftmaxClassifier struct {
	opts    Options
	weights *mat.Dense // NumClasses x InputSize
	bias    *mat.VecDense
	velW    *mat.Dense
	velB    *mat.VecDense
	seen    int
}

// NewSoftmaxClassifier constructs the model with small random weights.
func NewSoftmaxClassifier(opts Options) (*SoftmaxClassifier, error) {
	if opts.NumClasses <= 0 || opts.InputSize <= 0 {
		return nil, fmt.Errorf("model: invalid shape %d classes x %d inputs", opts.NumClasses, opts.InputSize)
	}
	if opts.Schedule.Base <= 0 {
		return nil, fmt.Errorf("model: learning rate must be > 0 (got %g)", opts.Schedule.Base)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	weights := make([]float64, opts.NumClasses*opts.InputSize)
	for i := range weights {
		weights[i] = (rng.Float64()*2 - 1) * 0.01
	}
	return &SoftmaxClassifier{
		opts:    opts,
		weights: mat.NewDense(opts.NumClasses, opts.InputSize, weights),
		bias:    mat.NewVecDense(opts.NumClasses, nil),
		velW:    mat.NewDense(opts.NumClasses, opts.InputSize, nil),
		velB:    mat.NewVecDense(opts.NumClasses, nil),
	}, nil
}

// TrainStep executes one momentum SGD step on the batch and returns the
// regularised mean loss.
func (m *SoftmaxClassifier) TrainStep(batch Batch) (StepResult, error) {
	n := len(batch.Inputs)
	if n == 0 || len(batch.Labels) != n {
		return StepResult{}, fmt.Errorf("%w: %d inputs, %d labels", ErrInput, n, len(batch.Labels))
	}
	nc, size := m.opts.NumClasses, m.opts.InputSize
	lr := m.opts.Schedule.Rate(m.seen)
	inv := 1 / float64(n)

	gradW := mat.NewDense(nc, size, nil)
	gradB := mat.NewVecDense(nc, nil)
	preds := make([][]float64, n)
	total := 0.0
	for i, input := range batch.Inputs {
		label := batch.Labels[i]
		if label < 0 || label >= nc {
			return StepResult{}, fmt.Errorf("%w: label %d outside [0,%d)", ErrInput, label, nc)
		}
		probs, err := m.forward(input)
		if err != nil {
			return StepResult{}, err
		}
		preds[i] = probs
		total += -math.Log(math.Max(probs[label], 1e-9))

		delta := append([]float64(nil), probs...)
		delta[label] -= 1
		dv := mat.NewVecDense(nc, delta)
		gradW.RankOne(gradW, inv, dv, mat.NewVecDense(size, input))
		gradB.AddScaledVec(gradB, inv, dv)
	}
	loss := total * inv

	if wd := m.opts.WeightDecay; wd > 0 {
		w := m.weights.RawMatrix().Data
		b := m.bias.RawVector().Data
		loss += wd * 0.5 * (floats.Dot(w, w) + floats.Dot(b, b))
		var decay mat.Dense
		decay.Scale(wd, m.weights)
		gradW.Add(gradW, &decay)
		gradB.AddScaledVec(gradB, wd, m.bias)
	}

	// accum = momentum*accum + grad; param -= lr*accum
	m.velW.Scale(m.opts.Momentum, m.velW)
	m.velW.Add(m.velW, gradW)
	var update mat.Dense
	update.Scale(lr, m.velW)
	m.weights.Sub(m.weights, &update)

	m.velB.ScaleVec(m.opts.Momentum, m.velB)
	m.velB.AddVec(m.velB, gradB)
	m.bias.AddScaledVec(m.bias, -lr, m.velB)

	m.seen += n
	return StepResult{Loss: loss, LearningRate: lr, Predictions: preds}, nil
}

// Predict returns class probabilities for each input.
func (m *SoftmaxClassifier) Predict(inputs [][]float64) ([][]float64, error) {
	out := make([][]float64, len(inputs))
	for i, input := range inputs {
		probs, err := m.forward(input)
		if err != nil {
			return nil, err
		}
		out[i] = probs
	}
	return out, nil
}

func (m *SoftmaxClassifier) forward(input []float64) ([]float64, error) {
	if len(input) != m.opts.InputSize {
		return nil, fmt.Errorf("%w: %d features, want %d", ErrInput, len(input), m.opts.InputSize)
	}
	logits := mat.NewVecDense(m.opts.NumClasses, nil)
	logits.MulVec(m.weights, mat.NewVecDense(len(input), input))
	logits.AddVec(logits, m.bias)
	return softmax(logits.RawVector().Data), nil
}

func softmax(logits []float64) []float64 {
	out := append([]float64(nil), logits...)
	floats.AddConst(-floats.Max(out), out)
	for i, v := range out {
		out[i] = math.Exp(v)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

type checkpoint struct {
	Options Options
	Weights []float64
	Bias    []float64
	VelW    []float64
	VelB    []float64
	Seen    int
}

// Save writes the model parameters and optimiser state in gob format.
func (m *SoftmaxClassifier) Save(w io.Writer) error {
	ck := checkpoint{
		Options: m.opts,
		Weights: append([]float64(nil), m.weights.RawMatrix().Data...),
		Bias:    append([]float64(nil), m.bias.RawVector().Data...),
		VelW:    append([]float64(nil), m.velW.RawMatrix().Data...),
		VelB:    append([]float64(nil), m.velB.RawVector().Data...),
		Seen:    m.seen,
	}
	return gob.NewEncoder(w).Encode(&ck)
}

// LoadSoftmaxClassifier restores a model written by Save.
func LoadSoftmaxClassifier(r io.Reader) (*SoftmaxClassifier, error) {
	var ck checkpoint
	if err := gob.NewDecoder(r).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	nc, size := ck.Options.NumClasses, ck.Options.InputSize
	if nc <= 0 || size <= 0 || len(ck.Weights) != nc*size || len(ck.VelW) != nc*size ||
		len(ck.Bias) != nc || len(ck.VelB) != nc {
		return nil, errors.New("model: checkpoint shape is inconsistent")
	}
	return &SoftmaxClassifier{
		opts:    ck.Options,
		weights: mat.NewDense(nc, size, ck.Weights),
		bias:    mat.NewVecDense(nc, ck.Bias),
		velW:    mat.NewDense(nc, size, ck.VelW),
		velB:    mat.NewVecDense(nc, ck.VelB),
		seen:    ck.Seen,
	}, nil
}
