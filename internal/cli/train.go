package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"slimforge/internal/config"
	"slimforge/internal/logging"
	"slimforge/internal/rundir"
	"slimforge/internal/trainer"
)

var (
	trainConfig    string
	trainOverrides config.Overrides
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run a training job",
	Long: `Loads the YAML config, creates <save_root>/<YYYYMMDD_HHMMSS>/ with a copy
of the config, and trains until the configured number of epochs.

Flags override the matching config keys. Starting two runs against the same
save root within one second fails; wait or pick another root.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVarP(&trainConfig, "config", "c", "configs/cub.yaml", "path to YAML config")
	f.StringVar(&trainOverrides.DataDir, "data-dir", "", "override data_dir")
	f.StringVar(&trainOverrides.SaveRoot, "save-root", "", "override save_root")
	f.IntVar(&trainOverrides.Epochs, "epochs", 0, "override epochs")
	f.IntVar(&trainOverrides.BatchSize, "batch-size", 0, "override batch_size")
	f.IntVar(&trainOverrides.NumWorkers, "num-workers", 0, "override num_workers")
	f.Float64Var(&trainOverrides.LR, "lr", 0, "override lr")
	f.Int64Var(&trainOverrides.Seed, "seed", 0, "override seed")
	f.StringVar(&trainOverrides.Resume, "resume", "", "checkpoint to resume from")
	rootCmd.AddCommand(trainCmd)
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(trainConfig)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(trainOverrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dir, err := rundir.Create(cfg.SaveRoot, trainConfig, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	logger, closer, err := logging.Init(dir, out)
	if err != nil {
		return err
	}
	defer closer.Close()
	logger.Info().Str("dir", dir).Msg("----save_dir")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := trainer.Run(ctx, trainer.RunConfig{
		DataDir:     cfg.DataDir,
		RunDir:      dir,
		Epochs:      cfg.Epochs,
		BatchSize:   cfg.BatchSize,
		NumWorkers:  cfg.NumWorkers,
		LR:          cfg.LR,
		WeightDecay: cfg.WeightDecay,
		Sparsity:    cfg.Sparsity,
		NumClasses:  cfg.NumClasses,
		LogEvery:    cfg.LogEvery,
		Seed:        cfg.Seed,
		Resume:      cfg.Resume,
		Progress:    out,
		Logger:      logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("training failed")
		return fmt.Errorf("training failed: %w", err)
	}
	logger.Info().
		Int("epochs", res.Epochs).
		Float64("accuracy", res.Accuracy).
		Str("checkpoint", res.Checkpoint).
		Msg("training finished")
	return nil
}
