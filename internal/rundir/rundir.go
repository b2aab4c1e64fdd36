// Package rundir creates the per-run output directory that holds logs,
// checkpoints and a snapshot of the configuration used.
package rundir

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Layout is the time format used to name run directories.
const Layout = "20060102_150405"

// ErrRunDirExists is returned when the directory for a timestamp is taken.
var ErrRunDirExists = errors.New("run directory already exists")

// Create makes <root>/<now formatted with Layout> and copies configFile into
// it. It never reuses an existing directory.
func Create(root, configFile string, now time.Time) (string, error) {
	dir := filepath.Join(root, now.Format(Layout))

	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create save root: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrRunDirExists, dir)
		}
		return "", fmt.Errorf("create run dir: %w", err)
	}

	if err := copyFile(configFile, filepath.Join(dir, filepath.Base(configFile))); err != nil {
		return "", fmt.Errorf("snapshot config: %w", err)
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
