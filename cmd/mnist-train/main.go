package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"convnet-forge/internal/config"
	"convnet-forge/internal/dataset"
	"convnet-forge/internal/model"
	"convnet-forge/internal/summary"
	"convnet-forge/internal/trainer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("mnist-train: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("mnist-train", flag.ContinueOnError)
	cfgPath := fs.String("config", "configs/mnist.yaml", "Path to YAML config")
	dataDir := fs.String("data", "", "Override MNIST data directory")
	outputDir := fs.String("output-dir", "", "Override checkpoint/summary directory")
	logFile := fs.String("log-file", "", "Also append log lines to this file")
	batchSize := fs.Int("batch-size", 0, "Batch size")
	steps := fs.Int("max-steps", 0, "Number of training steps (0 runs one epoch)")
	logEvery := fs.Int("log-every", 0, "Report every N steps")
	validation := fs.Int("validation-size", 0, "Leading training records held out for validation (0 disables)")
	seed := fs.Int64("seed", 0, "PRNG seed")
	placement := fs.Bool("log-device-placement", false, "Log where computation runs")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataDir:            *dataDir,
		OutputDir:          *outputDir,
		LogFile:            *logFile,
		BatchSize:          *batchSize,
		MaxSteps:           *steps,
		LogEvery:           *logEvery,
		ValidationSize:     *validation,
		Seed:               *seed,
		LogDevicePlacement: *placement,
		Set:                config.SetKeys(fs, map[string]string{"data": "data_dir"}),
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := trainer.NewLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	train, test, err := dataset.LoadMNIST(cfg.DataDir, cfg.TrainRecords, cfg.TestRecords)
	if err != nil {
		logger.Printf("load mnist from %s: %v", cfg.DataDir, err)
		return err
	}
	logger.Printf("train=%d test=%d image=%dx%d", train.Len(), test.Len(), train.Images.Rows, train.Images.Cols)

	split, err := dataset.SplitValidation(train, cfg.ValidationSize)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trainer.PrepareOutputDir(cfg.OutputDir, cfg.CleanOutputDir); err != nil {
		return err
	}
	var sum *summary.Writer
	if cfg.OutputDir != "" {
		if sum, err = summary.Open(ctx, filepath.Join(cfg.OutputDir, "summary.db")); err != nil {
			return err
		}
		defer sum.Close()
	}

	mdl, err := model.NewSoftmaxClassifier(model.Options{
		NumClasses: dataset.MNISTClasses,
		InputSize:  train.Images.Size(),
		Schedule: model.Schedule{
			Base:       cfg.LearningRate,
			DecayRate:  cfg.DecayRate,
			DecayEvery: split.Training.Len(),
			Staircase:  true,
		},
		Momentum:    cfg.Momentum,
		WeightDecay: cfg.WeightDecay,
		Seed:        cfg.Seed,
	})
	if err != nil {
		return err
	}

	tc := &trainer.TrainingContext{
		Config: trainer.RunConfig{
			BatchSize:          cfg.BatchSize,
			Steps:              cfg.MaxSteps,
			LogEvery:           cfg.LogEvery,
			EvalValidation:     cfg.EvalValidation && split.Validation.Len() > 0,
			OutputDir:          cfg.OutputDir,
			LogDevicePlacement: cfg.LogDevicePlacement,
		},
		Train:      split.Training,
		Validation: split.Validation,
		Test:       test,
		Model:      mdl,
		Logger:     logger,
		Summary:    sum,
	}

	res, err := trainer.Run(ctx, tc)
	if err != nil {
		logger.Printf("training failed: %v", err)
		return err
	}
	logger.Printf("confusion (rows=predicted, cols=actual):\n%s", res.Confusion)
	return nil
}
