package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverShardsBasic(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "shard-000000.tar"))
	mustWrite(t, filepath.Join(dir, "nested", "shard-000001.tar"))
	mustWrite(t, filepath.Join(dir, "ignore.txt"))

	shards, err := DiscoverShards(dir)
	if err != nil {
		t.Fatalf("DiscoverShards error: %v", err)
	}
	want := []string{
		filepath.Join(dir, "nested", "shard-000001.tar"),
		filepath.Join(dir, "shard-000000.tar"),
	}
	if len(shards) != len(want) {
		t.Fatalf("expected %d shards, got %d", len(want), len(shards))
	}
	for i, shard := range want {
		if shards[i] != shard {
			t.Fatalf("shard[%d]=%s want %s", i, shards[i], shard)
		}
	}
}

func TestDiscoverShardsMissingRoot(t *testing.T) {
	if _, err := DiscoverShards(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestOpenSplitCountsSamples(t *testing.T) {
	dir := t.TempDir()
	writeShard(t, filepath.Join(dir, TrainDir, "shard-000000.tar"), pairs("a", 0, 3))
	writeShard(t, filepath.Join(dir, TrainDir, "shard-000001.tar"), pairs("b", 0, 2))
	writeShard(t, filepath.Join(dir, TestDir, "shard-000000.tar"), pairs("c", 0, 1))

	train, err := OpenSplit(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("OpenSplit train: %v", err)
	}
	if !train.Train || train.Len() != 5 || len(train.Shards) != 2 {
		t.Fatalf("unexpected train split %+v", train)
	}

	test, err := OpenSplit(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("OpenSplit test: %v", err)
	}
	if test.Train || test.Len() != 1 {
		t.Fatalf("unexpected test split %+v", test)
	}
}

func TestOpenSplitWithoutShards(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, TestDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := OpenSplit(context.Background(), dir, false); err == nil {
		t.Fatal("expected error for empty split")
	}
}

func mustWrite(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
