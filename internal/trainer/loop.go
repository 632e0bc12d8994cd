package trainer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"convnet-forge/internal/dataset"
	"convnet-forge/internal/metrics"
	"convnet-forge/internal/model"
	"convnet-forge/internal/summary"
)

var (
	// ErrDiverged reports a non-finite training loss.
	ErrDiverged = errors.New("trainer: loss diverged")
	// ErrBatchSize reports a batch size the training pool cannot serve.
	ErrBatchSize = errors.New("trainer: batch size does not fit training set")
)

// CheckpointFile is the checkpoint name written under the output directory.
const CheckpointFile = "model.ckpt"

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	BatchSize int
	// Steps is the number of training steps; zero runs one epoch.
	Steps              int
	LogEvery           int
	EvalValidation     bool
	OutputDir          string
	LogDevicePlacement bool
}

// TrainingContext carries everything a run touches. It replaces any
// process-wide state: decoder output, model, logger and sinks are all held
// here and passed explicitly.
type TrainingContext struct {
	Config     RunConfig
	Train      *dataset.Set
	Validation *dataset.Set
	// Test is evaluated once after training when set.
	Test    *dataset.Set
	Model   model.Model
	Logger  *log.Logger
	Summary *summary.Writer

	window metrics.Window
	now    func() time.Time
}

// Result summarises a finished run.
type Result struct {
	Steps     int
	LastLoss  float64
	Elapsed   time.Duration
	TestError float64
	Confusion metrics.ConfusionMatrix
}

// Validate checks the context before any step runs.
func (tc *TrainingContext) Validate() error {
	if tc.Model == nil {
		return errors.New("trainer: model is nil")
	}
	if tc.Train == nil {
		return errors.New("trainer: training set is nil")
	}
	if tc.Config.BatchSize <= 0 || tc.Config.BatchSize >= tc.Train.Len() {
		return fmt.Errorf("%w: batch_size=%d train_size=%d", ErrBatchSize, tc.Config.BatchSize, tc.Train.Len())
	}
	if tc.Config.Steps < 0 {
		return fmt.Errorf("trainer: steps must be >= 0 (got %d)", tc.Config.Steps)
	}
	if tc.Config.EvalValidation && (tc.Validation == nil || tc.Validation.Len() == 0) {
		return errors.New("trainer: validation evaluation requested without a validation set")
	}
	return nil
}

// Steps returns the number of steps the run will take.
func (tc *TrainingContext) Steps() int {
	if tc.Config.Steps > 0 {
		return tc.Config.Steps
	}
	return tc.Train.Len() / tc.Config.BatchSize
}

// Run executes the training workload.
func Run(ctx context.Context, tc *TrainingContext) (Result, error) {
	if err := tc.Validate(); err != nil {
		return Result{}, err
	}
	if tc.Logger == nil {
		tc.Logger = log.Default()
	}
	if tc.now == nil {
		tc.now = time.Now
	}
	if tc.Config.LogEvery <= 0 {
		tc.Config.LogEvery = 100
	}
	if tc.Config.LogDevicePlacement {
		tc.Logger.Printf("device=cpu:0 goos=%s goarch=%s cpus=%d gomaxprocs=%d",
			runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.GOMAXPROCS(0))
	}

	steps := tc.Steps()
	tc.Logger.Printf("train_size=%d validation_size=%d batch_size=%d steps=%d",
		tc.Train.Len(), setLen(tc.Validation), tc.Config.BatchSize, steps)

	var res Result
	start := tc.now()
	tc.window.Reset(start)
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := toBatch(dataset.NextBatch(tc.Train, step, tc.Config.BatchSize))
		out, err := tc.Model.TrainStep(batch)
		if err != nil {
			return res, fmt.Errorf("step %d: %w", step, err)
		}
		if math.IsNaN(out.Loss) || math.IsInf(out.Loss, 0) {
			return res, fmt.Errorf("%w at step %d: loss=%v", ErrDiverged, step, out.Loss)
		}
		tc.window.Record(tc.Config.BatchSize, out.Loss)
		res.Steps = step + 1
		res.LastLoss = out.Loss

		if step%tc.Config.LogEvery == 0 {
			if err := tc.report(ctx, step, steps, batch, out); err != nil {
				return res, err
			}
		}
	}
	res.Elapsed = tc.now().Sub(start)
	tc.Logger.Printf("spent %f seconds to train %d steps", res.Elapsed.Seconds(), res.Steps)
	tc.Logger.Printf("last loss value: %.2f", res.LastLoss)

	if tc.Test != nil && tc.Test.Len() > 0 {
		ev, err := evaluate(tc.Model, tc.Test)
		if err != nil {
			return res, fmt.Errorf("test evaluation: %w", err)
		}
		res.TestError, res.Confusion = ev.ErrorRate, ev.Confusion
		tc.Logger.Printf("test_error=%.1f%%", ev.ErrorRate)
	}

	if tc.Config.OutputDir != "" {
		if err := saveCheckpoint(tc.Model, filepath.Join(tc.Config.OutputDir, CheckpointFile)); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (tc *TrainingContext) report(ctx context.Context, step, steps int, batch model.Batch, out model.StepResult) error {
	mb, err := metrics.ErrorRate(out.Predictions, batch.Labels, tc.Train.NumClasses())
	if err != nil {
		return fmt.Errorf("step %d: %w", step, err)
	}
	rec := summary.Record{Step: step, Loss: out.Loss, MinibatchError: mb, LearningRate: out.LearningRate}
	line := fmt.Sprintf("step=%d/%d loss=%.5f minibatch_error=%.2f%% lr=%.5f",
		step, steps, out.Loss, mb, out.LearningRate)

	if tc.Config.EvalValidation {
		ev, err := evaluate(tc.Model, tc.Validation)
		if err != nil {
			return fmt.Errorf("step %d validation: %w", step, err)
		}
		rec.ValidationError = sql.NullFloat64{Float64: ev.ErrorRate, Valid: true}
		line += fmt.Sprintf(" validation_error=%.1f%%", ev.ErrorRate)
	}

	snap := tc.window.Snapshot(tc.now())
	rec.ExamplesPerSec, rec.SecPerBatch = snap.ExamplesPerSec, snap.SecPerBatch
	tc.Logger.Printf("%s examples_per_sec=%.1f sec_per_batch=%.3f", line, snap.ExamplesPerSec, snap.SecPerBatch)

	if tc.Summary != nil {
		if err := tc.Summary.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func evaluate(m model.Model, set *dataset.Set) (metrics.Evaluation, error) {
	preds, err := m.Predict(set.Inputs())
	if err != nil {
		return metrics.Evaluation{}, err
	}
	return metrics.Evaluate(preds, set.Labels.Labels, set.NumClasses())
}

func toBatch(set *dataset.Set) model.Batch {
	return model.Batch{Inputs: set.Inputs(), Labels: set.Labels.Labels}
}

func setLen(s *dataset.Set) int {
	if s == nil {
		return 0
	}
	return s.Len()
}

func saveCheckpoint(m model.Model, path string) error {
	saver, ok := m.(model.Saver)
	if !ok {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if err := saver.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return f.Close()
}
