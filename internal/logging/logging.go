// Package logging sets up the run logger: every event goes to log.log in the
// run directory, info and above are echoed to the console.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FileName is the log file created inside the run directory.
const FileName = "log.log"

// TimeFormat is the timestamp layout of file log lines.
const TimeFormat = "20060102-15:04:05"

// Init opens <dir>/log.log, truncating any previous content, and returns a
// logger writing debug events to it and info events to console. The returned
// closer releases the file.
func Init(dir string, console io.Writer) (zerolog.Logger, io.Closer, error) {
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	return New(f, console), f, nil
}

// New builds the dual-sink logger over arbitrary writers.
func New(file, console io.Writer) zerolog.Logger {
	fileSink := zerolog.ConsoleWriter{
		Out:        file,
		NoColor:    true,
		TimeFormat: TimeFormat,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
	}
	consoleSink := zerolog.ConsoleWriter{
		Out:        console,
		NoColor:    true,
		PartsOrder: []string{zerolog.MessageFieldName},
	}

	out := zerolog.MultiLevelWriter(
		levelFilter{w: &fileSink, min: zerolog.DebugLevel},
		levelFilter{w: &consoleSink, min: zerolog.InfoLevel},
	)
	return zerolog.New(out).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// levelFilter drops events below min.
type levelFilter struct {
	w   io.Writer
	min zerolog.Level
}

func (f levelFilter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f levelFilter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.min {
		return len(p), nil
	}
	return f.w.Write(p)
}
