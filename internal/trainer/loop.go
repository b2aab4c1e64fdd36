package trainer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"slimforge/internal/checkpoint"
	"slimforge/internal/dataset"
	"slimforge/internal/metrics"
	"slimforge/internal/model"
	"slimforge/internal/params"
	"slimforge/internal/progress"
)

const featureGrid = 16
const featureSize = featureGrid * featureGrid

// ErrResumeComplete reports a resume checkpoint that already covers every
// requested epoch.
var ErrResumeComplete = errors.New("trainer: checkpoint already covers all epochs")

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	DataDir     string
	RunDir      string
	Epochs      int
	BatchSize   int
	NumWorkers  int
	LR          float64
	WeightDecay float64
	Sparsity    float64
	NumClasses  int
	LogEvery    int
	Seed        int64
	// Resume names a checkpoint to continue from. The bn1/bn2/bn3 biases
	// are not restored from it.
	Resume string
	// Progress receives the progress bar, os.Stdout when nil.
	Progress io.Writer
	Logger   zerolog.Logger
}

// Result summarises a finished run.
type Result struct {
	Epochs     int
	Accuracy   float64
	Checkpoint string
}

// Run executes the training workload.
func Run(ctx context.Context, cfg RunConfig) (Result, error) {
	if cfg.Epochs <= 0 {
		return Result{}, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return Result{}, errors.New("trainer: batch size must be > 0")
	}
	if cfg.NumClasses < 2 {
		return Result{}, errors.New("trainer: need at least 2 classes")
	}
	if cfg.RunDir == "" {
		return Result{}, errors.New("trainer: run dir must be set")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 50
	}
	if cfg.Progress == nil {
		cfg.Progress = os.Stdout
	}
	log := cfg.Logger

	trainSet, testSet, trainLoader, testLoader, err := dataset.NewLoaders(ctx, cfg.DataDir, cfg.BatchSize, cfg.NumWorkers, cfg.Seed)
	if err != nil {
		return Result{}, err
	}
	log.Info().
		Int("train_samples", trainSet.Len()).
		Int("test_samples", testSet.Len()).
		Int("train_batches", trainLoader.Len()).
		Msg("dataset ready")

	mdl := model.NewSlimNet(cfg.NumClasses, featureSize, cfg.LR, cfg.Seed)
	log.Info().Msgf("-----Model Size: %.5fM", params.Millions(params.Count(mdl)))

	groups := params.Extract(mdl)
	log.Debug().Strs("slim", params.Names(groups.Slim)).Strs("biases", params.Names(groups.Biases)).Msg("parameter groups")

	start := 0
	if cfg.Resume != "" {
		start, err = resume(mdl, cfg.Resume)
		if err != nil {
			return Result{}, err
		}
		if start >= cfg.Epochs {
			return Result{}, fmt.Errorf("%w: %s resumes at epoch %d of %d", ErrResumeComplete, cfg.Resume, start, cfg.Epochs)
		}
		log.Info().Str("checkpoint", cfg.Resume).Int("epoch", start).Msg("resumed")
	}
	trainLoader.SetEpoch(start)

	res := Result{Checkpoint: filepath.Join(cfg.RunDir, checkpoint.FileName)}
	bar := progress.NewBar(cfg.Progress)
	r := &runner{cfg: cfg, mdl: mdl, groups: groups, bar: bar, log: log}

	for epoch := start; epoch < cfg.Epochs; epoch++ {
		if err := r.trainEpoch(ctx, trainLoader, epoch); err != nil {
			return res, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		acc, err := r.evaluate(ctx, testLoader)
		if err != nil {
			return res, fmt.Errorf("evaluate epoch %d: %w", epoch, err)
		}
		if err := checkpoint.Save(res.Checkpoint, checkpoint.FromModel(mdl, epoch, acc)); err != nil {
			return res, err
		}
		res.Epochs++
		res.Accuracy = acc
		log.Info().
			Int("epoch", epoch).
			Float64("accuracy", acc).
			Float64("l1", params.L1Penalty(groups.Slim)).
			Msg("epoch done")
	}
	return res, nil
}

// resume restores mdl from path and returns the epoch to continue with.
func resume(mdl params.Module, path string) (int, error) {
	ck, err := checkpoint.Load(path)
	if err != nil {
		return 0, err
	}
	if err := params.Load(mdl, params.FilterCheckpoint(mdl, ck.State)); err != nil {
		return 0, fmt.Errorf("resume %s: %w", path, err)
	}
	return ck.Epoch + 1, nil
}

type runner struct {
	cfg    RunConfig
	mdl    model.Model
	groups params.Groups
	bar    *progress.Bar
	log    zerolog.Logger
}

func (r *runner) trainEpoch(parent context.Context, loader *dataset.Loader, epoch int) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	total := loader.Len()
	batches, errs := loader.Batches(ctx)
	var window metrics.Window
	msg := fmt.Sprintf("epoch %d/%d", epoch+1, r.cfg.Epochs)

	step := 0
	startData := time.Now()
	for samples := range batches {
		dataTime := time.Since(startData)

		startCompute := time.Now()
		batch := toBatch(samples, r.cfg.NumClasses)
		loss := r.mdl.TrainStep(batch)
		applyWeightDecay(r.groups.Weights, r.cfg.LR*r.cfg.WeightDecay)
		applySparsity(r.groups.Slim, r.cfg.LR*r.cfg.Sparsity)
		penalty := r.cfg.Sparsity * params.L1Penalty(r.groups.Slim)
		computeTime := time.Since(startCompute)

		window.Record(metrics.Step{
			BatchSize: len(batch.Inputs),
			Data:      dataTime,
			Compute:   computeTime,
			Loss:      loss,
			Penalty:   penalty,
		})

		err := r.bar.Update(step, total, progress.Stats{Loss: loss, L1: penalty, LR: r.cfg.LR, Msg: msg})
		if err != nil {
			return err
		}
		if window.Steps() >= r.cfg.LogEvery {
			snap := window.Snapshot()
			r.log.Debug().
				Int("epoch", epoch).
				Int("step", step).
				Float64("images_per_sec", snap.ImagesPerSec).
				Float64("data_ms", snap.AvgDataMS).
				Float64("compute_ms", snap.AvgComputeMS).
				Float64("loss", snap.AvgLoss).
				Float64("l1", snap.Penalty).
				Msg("train window")
		}
		step++
		startData = time.Now()
	}
	return <-errs
}

func (r *runner) evaluate(parent context.Context, loader *dataset.Loader) (float64, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var tally metrics.Tally
	batches, errs := loader.Batches(ctx)
	for samples := range batches {
		batch := toBatch(samples, r.cfg.NumClasses)
		for i, input := range batch.Inputs {
			tally.Add(r.mdl.Predict(input), batch.Labels[i])
		}
	}
	if err := <-errs; err != nil {
		return 0, err
	}
	return tally.Accuracy(), nil
}

// applyWeightDecay shrinks every weight by the factor rate.
func applyWeightDecay(ps []*params.Param, rate float64) {
	if rate == 0 {
		return
	}
	for _, p := range ps {
		for i := range p.Data {
			p.Data[i] -= rate * p.Data[i]
		}
	}
}

// applySparsity takes an L1 sub-gradient step of size rate.
func applySparsity(ps []*params.Param, rate float64) {
	if rate == 0 {
		return
	}
	for _, p := range ps {
		for i, v := range p.Data {
			switch {
			case v > 0:
				p.Data[i] = v - rate
			case v < 0:
				p.Data[i] = v + rate
			}
		}
	}
}

func toBatch(samples []dataset.Sample, numClasses int) model.Batch {
	inputs := make([][]float64, 0, len(samples))
	labels := make([]int, 0, len(samples))
	for _, sample := range samples {
		features, err := extractFeatures(sample.Image)
		if err != nil {
			continue
		}
		inputs = append(inputs, features)
		labels = append(labels, model.WrapLabel(sample.Label, numClasses))
	}
	return model.Batch{Inputs: inputs, Labels: labels}
}

func extractFeatures(raw []byte) ([]float64, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("empty image")
	}
	features := make([]float64, featureSize)
	stepX := float64(width) / float64(featureGrid)
	stepY := float64(height) / float64(featureGrid)
	for gy := 0; gy < featureGrid; gy++ {
		for gx := 0; gx < featureGrid; gx++ {
			px := bounds.Min.X + int(math.Min(float64(width-1), float64(gx)*stepX))
			py := bounds.Min.Y + int(math.Min(float64(height-1), float64(gy)*stepY))
			r, g, b, _ := img.At(px, py).RGBA()
			intensity := (float64(r) + float64(g) + float64(b)) / (3 * 65535.0)
			features[gy*featureGrid+gx] = intensity
		}
	}
	return features, nil
}
