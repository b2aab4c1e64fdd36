package dataset

import (
	"context"
	"math/rand"
)

// DefaultShuffleBuffer bounds the sample shuffle buffer when
// LoaderOptions.ShuffleBuffer is not set.
const DefaultShuffleBuffer = 1000

// LoaderOptions mirrors the usual data loader knobs.
type LoaderOptions struct {
	BatchSize  int
	NumWorkers int
	// Shuffle permutes the shard order on every epoch and mixes samples
	// through a buffer of ShuffleBuffer entries.
	Shuffle       bool
	ShuffleBuffer int
	DropLast      bool
	Seed          int64
}

// Loader yields batches of samples from a Split, one epoch per call to
// Batches.
type Loader struct {
	split *Split
	opts  LoaderOptions
	epoch int64
}

// NewLoader wraps split. A non-positive batch size means 1.
func NewLoader(split *Split, opts LoaderOptions) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.ShuffleBuffer <= 0 {
		opts.ShuffleBuffer = DefaultShuffleBuffer
	}
	return &Loader{split: split, opts: opts}
}

// NewLoaders opens the train and test splits under dataDir and builds their
// loaders: the train loader shuffles, the test loader keeps shard order, and
// neither drops a trailing partial batch.
func NewLoaders(ctx context.Context, dataDir string, batchSize, numWorkers int, seed int64) (trainSet, testSet *Split, trainLoader, testLoader *Loader, err error) {
	trainSet, err = OpenSplit(ctx, dataDir, true)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	testSet, err = OpenSplit(ctx, dataDir, false)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	trainLoader = NewLoader(trainSet, LoaderOptions{
		BatchSize:  batchSize,
		NumWorkers: numWorkers,
		Shuffle:    true,
		Seed:       seed,
	})
	testLoader = NewLoader(testSet, LoaderOptions{
		BatchSize:  batchSize,
		NumWorkers: numWorkers,
		Seed:       seed,
	})
	return trainSet, testSet, trainLoader, testLoader, nil
}

// SetEpoch sets the epoch the next call to Batches produces. Shuffled
// orders depend only on the seed and the epoch, so a resumed run continues
// the sequence it left.
func (l *Loader) SetEpoch(epoch int) {
	l.epoch = int64(epoch)
}

// Len returns the number of batches one epoch yields.
func (l *Loader) Len() int {
	n := l.split.Len()
	if l.opts.DropLast {
		return n / l.opts.BatchSize
	}
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Batches starts one epoch. The batch channel is closed at the end of the
// epoch, after which the error channel yields the first failure, if any.
func (l *Loader) Batches(ctx context.Context) (<-chan []Sample, <-chan error) {
	var rng *rand.Rand
	if l.opts.Shuffle {
		rng = rand.New(rand.NewSource(l.opts.Seed + l.epoch))
	}
	l.epoch++
	order := l.order(rng)
	out := make(chan []Sample, 1)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)
		if err := l.run(ctx, order, rng, out); err != nil {
			errc <- err
		}
	}()
	return out, errc
}

// run streams one epoch. With a non-nil rng, samples pass through a
// shuffle buffer: once it is full, each incoming sample replaces a randomly
// chosen one, which is emitted.
func (l *Loader) run(parent context.Context, order []string, rng *rand.Rand, out chan<- []Sample) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	samples, samplerErr, err := StartSampler(ctx, SamplerOptions{
		Shards:     order,
		NumWorkers: l.opts.NumWorkers,
	})
	if err != nil {
		return err
	}

	emit := func(batch []Sample) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- batch:
			return nil
		}
	}

	batch := make([]Sample, 0, l.opts.BatchSize)
	add := func(sample Sample) error {
		batch = append(batch, sample)
		if len(batch) < l.opts.BatchSize {
			return nil
		}
		full := batch
		batch = make([]Sample, 0, l.opts.BatchSize)
		return emit(full)
	}

	var pool []Sample
	for sample := range samples {
		if rng != nil {
			if len(pool) < l.opts.ShuffleBuffer {
				pool = append(pool, sample)
				continue
			}
			i := rng.Intn(len(pool))
			pool[i], sample = sample, pool[i]
		}
		if err := add(sample); err != nil {
			return err
		}
	}
	if err := <-samplerErr; err != nil {
		return err
	}
	if err := parent.Err(); err != nil {
		return err
	}
	if rng != nil {
		rng.Shuffle(len(pool), func(i, j int) {
			pool[i], pool[j] = pool[j], pool[i]
		})
		for _, sample := range pool {
			if err := add(sample); err != nil {
				return err
			}
		}
	}
	if len(batch) > 0 && !l.opts.DropLast {
		return emit(batch)
	}
	return nil
}

// order returns the shard order for one epoch, permuted when rng is set.
func (l *Loader) order(rng *rand.Rand) []string {
	order := append([]string(nil), l.split.Shards...)
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order
}
