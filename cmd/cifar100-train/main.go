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
	"time"

	"convnet-forge/internal/config"
	"convnet-forge/internal/dataset"
	"convnet-forge/internal/model"
	"convnet-forge/internal/summary"
	"convnet-forge/internal/trainer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("cifar100-train: %v", err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("cifar100-train", flag.ContinueOnError)
	cfgPath := fs.String("config", "configs/cifar100.yaml", "Path to YAML config")
	dataDir := fs.String("data", "", "Override CIFAR-100 data directory")
	trainDir := fs.String("train-dir", "", "Directory where to write summaries and checkpoint")
	logFile := fs.String("log-file", "", "Log file (default log/cifar100-<timestamp>.log)")
	batchSize := fs.Int("batch-size", 0, "Batch size")
	steps := fs.Int("max-steps", 0, "Number of batches to run (0 runs one epoch)")
	logEvery := fs.Int("log-frequency", 0, "How often to log results")
	seed := fs.Int64("seed", 0, "PRNG seed")
	placement := fs.Bool("log-device-placement", false, "Whether to log device placement")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		DataDir:            *dataDir,
		OutputDir:          *trainDir,
		LogFile:            *logFile,
		BatchSize:          *batchSize,
		MaxSteps:           *steps,
		LogEvery:           *logEvery,
		Seed:               *seed,
		LogDevicePlacement: *placement,
		Set: config.SetKeys(fs, map[string]string{
			"data":          "data_dir",
			"train-dir":     "output_dir",
			"log-frequency": "log_every",
		}),
	})
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join("log", "cifar100-single-gpu-bench"+time.Now().Format("20060102-150405")+".log")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closer, err := trainer.NewLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	train, test, err := dataset.LoadCIFAR100(cfg.DataDir, cfg.FineLabels)
	if err != nil {
		logger.Printf("load cifar-100 from %s: %v", cfg.DataDir, err)
		return err
	}
	logger.Printf("train=%d test=%d classes=%d", train.Len(), test.Len(), train.NumClasses())

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
		NumClasses: train.NumClasses(),
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

	if _, err := trainer.Run(ctx, tc); err != nil {
		logger.Printf("training failed: %v", err)
		return err
	}
	return nil
}
