package model

import "io"

// Batch represents a minibatch of features and labels.
type Batch struct {
	Inputs [][]float64
	Labels []int
}

// StepResult is what one optimisation step reports back.
type StepResult struct {
	Loss         float64
	LearningRate float64
	// Predictions holds per-example class probabilities computed before the
	// parameter update.
	Predictions [][]float64
}

// Model is the training capability driven by the trainer loop. Calls are
// synchronous and never overlap.
type Model interface {
	TrainStep(batch Batch) (StepResult, error)
	Predict(inputs [][]float64) ([][]float64, error)
}

// Saver is implemented by models that can write a checkpoint.
type Saver interface {
	Save(w io.Writer) error
}
