// Package checkpoint persists model state between runs.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"slimforge/internal/params"
)

// FileName is the checkpoint written into a run directory.
const FileName = "model.ckpt"

// Checkpoint is the saved state of a run after an epoch.
type Checkpoint struct {
	Epoch     int
	State     params.StateDict
	Trainable map[string]bool
	Accuracy  float64
}

// FromModel snapshots m at the end of epoch.
func FromModel(m params.Module, epoch int, accuracy float64) Checkpoint {
	trainable := make(map[string]bool)
	for _, p := range m.NamedParameters() {
		trainable[p.Name] = p.Trainable
	}
	return Checkpoint{
		Epoch:     epoch,
		State:     params.State(m),
		Trainable: trainable,
		Accuracy:  accuracy,
	}
}

// Save writes ck to path atomically: the data goes to a temporary file in
// the same directory which is then renamed over path.
func Save(path string, ck Checkpoint) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".ckpt-*")
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(ck); err != nil {
		tmp.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint written by Save.
func Load(path string) (Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var ck Checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if ck.State == nil {
		ck.State = make(params.StateDict)
	}
	return ck, nil
}
