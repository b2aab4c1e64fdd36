package dataset

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

// Split directory names under a data root.
const (
	TrainDir = "train"
	TestDir  = "test"
)

// DiscoverShards returns paths to shard TAR files beneath root, sorted.
func DiscoverShards(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover shards: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

// Split is one half of a dataset, train or test, with its sample count.
type Split struct {
	Root    string
	Train   bool
	Shards  []string
	Samples int
}

// OpenSplit discovers the shards of <dataDir>/train or <dataDir>/test and
// counts their samples.
func OpenSplit(ctx context.Context, dataDir string, isTrain bool) (*Split, error) {
	root := filepath.Join(dataDir, TestDir)
	if isTrain {
		root = filepath.Join(dataDir, TrainDir)
	}
	shards, err := DiscoverShards(root)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards discovered under %s", root)
	}

	split := &Split{Root: root, Train: isTrain, Shards: shards}
	for _, shard := range shards {
		n, err := CountSamples(ctx, shard)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", shard, err)
		}
		split.Samples += n
	}
	return split, nil
}

// Len returns the number of samples in the split.
func (s *Split) Len() int {
	return s.Samples
}
