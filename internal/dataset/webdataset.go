package dataset

import (
	"archive/tar"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sample represents a paired record from a WebDataset shard.
type Sample struct {
	Key   string
	Image []byte
	Label int
}

// ErrPendingOverflow indicates the pairing map exceeded the configured bound.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// StreamShard streams paired samples from the shard at path. Both channels
// are closed once the shard is exhausted; at most one error is sent.
func StreamShard(ctx context.Context, path string, pendingCap int) (<-chan Sample, <-chan error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		if err := readShard(ctx, path, pendingCap, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// CountSamples returns the number of complete pairs in the shard at path.
func CountSamples(ctx context.Context, path string) (int, error) {
	samples, errCh := StreamShard(ctx, path, 0)
	n := 0
	for range samples {
		n++
	}
	if err := <-errCh; err != nil {
		return 0, err
	}
	return n, nil
}

func readShard(ctx context.Context, path string, pendingCap int, out chan<- Sample) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open shard: %w", err)
	}
	defer f.Close()

	tr := tar.NewReader(bufio.NewReader(f))
	pending := make(map[string]*partial)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar %s: %w", path, err)
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(hdr.Name)
		ext := strings.ToLower(filepath.Ext(name))
		key := strings.TrimSuffix(name, filepath.Ext(name))

		if !imageExts[ext] && ext != ".cls" {
			continue
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}

		part := pending[key]
		if part == nil {
			part = &partial{}
			pending[key] = part
		}
		if ext == ".cls" {
			label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
			if err != nil {
				return fmt.Errorf("parse label %s: %w", name, err)
			}
			part.label = &label
		} else {
			part.image = payload
		}

		if len(pending) > pendingCap {
			return ErrPendingOverflow
		}
		if !part.ready() {
			continue
		}

		delete(pending, key)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- Sample{Key: key, Image: part.image, Label: *part.label}:
		}
	}

	if len(pending) > 0 {
		return fmt.Errorf("%s: %d samples incomplete", path, len(pending))
	}
	return nil
}

type partial struct {
	image []byte
	label *int
}

func (p *partial) ready() bool {
	return len(p.image) > 0 && p.label != nil
}
