package model

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"gotest.tools/assert"
)

func testOptions() Options {
	return Options{
		NumClasses:  3,
		InputSize:   4,
		Schedule:    Schedule{Base: 0.1},
		Momentum:    0.9,
		WeightDecay: 5e-4,
		Seed:        1,
	}
}

func testBatch() Batch {
	return Batch{
		Inputs: [][]float64{
			{0.1, 0.2, 0.3, 0.4},
			{0.4, 0.3, 0.2, 0.1},
		},
		Labels: []int{1, 2},
	}
}

func TestSoftmaxTrainStepReducesLoss(t *testing.T) {
	m, err := NewSoftmaxClassifier(testOptions())
	assert.NilError(t, err)
	batch := testBatch()
	res1, err := m.TrainStep(batch)
	assert.NilError(t, err)
	res2, err := m.TrainStep(batch)
	assert.NilError(t, err)
	if res2.Loss > res1.Loss {
		t.Fatalf("expected loss to decrease; loss1=%f loss2=%f", res1.Loss, res2.Loss)
	}
	assert.Equal(t, res1.LearningRate, 0.1)
	assert.Equal(t, len(res1.Predictions), 2)
	for _, p := range res1.Predictions {
		sum := 0.0
		for _, v := range p {
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("probabilities sum to %f", sum)
		}
	}
}

func TestSoftmaxLearnsSeparableData(t *testing.T) {
	opts := testOptions()
	opts.NumClasses, opts.InputSize = 2, 2
	opts.Schedule.Base = 0.5
	m, err := NewSoftmaxClassifier(opts)
	assert.NilError(t, err)
	batch := Batch{Inputs: [][]float64{{0.5, -0.5}, {-0.5, 0.5}}, Labels: []int{0, 1}}
	for i := 0; i < 50; i++ {
		_, err := m.TrainStep(batch)
		assert.NilError(t, err)
	}
	preds, err := m.Predict(batch.Inputs)
	assert.NilError(t, err)
	assert.Assert(t, preds[0][0] > 0.9, "got %v", preds[0])
	assert.Assert(t, preds[1][1] > 0.9, "got %v", preds[1])
}

func TestSoftmaxRejectsBadInput(t *testing.T) {
	m, err := NewSoftmaxClassifier(testOptions())
	assert.NilError(t, err)

	_, err = m.TrainStep(Batch{Inputs: [][]float64{{1, 2}}, Labels: []int{0}})
	assert.Assert(t, errors.Is(err, ErrInput), "got %v", err)

	_, err = m.TrainStep(Batch{Inputs: [][]float64{{1, 2, 3, 4}}, Labels: []int{3}})
	assert.Assert(t, errors.Is(err, ErrInput), "got %v", err)

	_, err = m.TrainStep(Batch{})
	assert.Assert(t, errors.Is(err, ErrInput), "got %v", err)

	_, err = NewSoftmaxClassifier(Options{NumClasses: 2, InputSize: 2})
	assert.ErrorContains(t, err, "learning rate")
}

func TestSoftmaxCheckpoint(t *testing.T) {
	m, err := NewSoftmaxClassifier(testOptions())
	assert.NilError(t, err)
	_, err = m.TrainStep(testBatch())
	assert.NilError(t, err)

	buf := &bytes.Buffer{}
	assert.NilError(t, m.Save(buf))
	restored, err := LoadSoftmaxClassifier(buf)
	assert.NilError(t, err)

	want, err := m.Predict(testBatch().Inputs)
	assert.NilError(t, err)
	got, err := restored.Predict(testBatch().Inputs)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, want)

	a, err := m.TrainStep(testBatch())
	assert.NilError(t, err)
	b, err := restored.TrainStep(testBatch())
	assert.NilError(t, err)
	assert.Equal(t, a.Loss, b.Loss)
}

func TestScheduleStaircase(t *testing.T) {
	s := Schedule{Base: 0.01, DecayRate: 0.95, DecayEvery: 100, Staircase: true}
	assert.Equal(t, s.Rate(0), 0.01)
	assert.Equal(t, s.Rate(99), 0.01)
	if math.Abs(s.Rate(100)-0.0095) > 1e-12 {
		t.Fatalf("rate after one period = %g", s.Rate(100))
	}
	smooth := s
	smooth.Staircase = false
	if r := smooth.Rate(50); r >= 0.01 || r <= 0.0095 {
		t.Fatalf("continuous rate at half period = %g", r)
	}
	assert.Equal(t, Schedule{Base: 0.3}.Rate(1000), 0.3)
}
