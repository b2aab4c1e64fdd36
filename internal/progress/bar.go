// Package progress renders a single-line console progress bar for training
// loops and formats elapsed durations compactly.
package progress

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

const (
	// DefaultWidth is the assumed terminal width when none can be detected.
	DefaultWidth = 200
	// barLength is the number of segments in the bar.
	barLength = 6
)

// ErrInvalidTotal is returned by Update when total is not positive.
var ErrInvalidTotal = errors.New("progress: total must be > 0")

// Stats carries the metrics shown next to the bar. Zero values of L1 and LR
// are treated as absent. The LR segment is only shown together with Msg.
type Stats struct {
	Loss float64
	L1   float64
	LR   float64
	Msg  string
}

// Bar tracks the timing of one cycle of steps and redraws a status line on
// every Update.
type Bar struct {
	out   io.Writer
	width int
	now   func() time.Time
	last  time.Time
	begin time.Time
}

// Option configures a Bar.
type Option func(*Bar)

// WithWidth fixes the terminal width used for padding.
func WithWidth(width int) Option {
	return func(b *Bar) {
		if width > 0 {
			b.width = width
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bar) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBar returns a Bar writing to out. The width is taken from the terminal
// when out is one, DefaultWidth otherwise.
func NewBar(out io.Writer, opts ...Option) *Bar {
	b := &Bar{
		out:   out,
		width: DetectWidth(out),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.last = b.now()
	b.begin = b.last
	return b
}

// DetectWidth reports the column count of w if it is a terminal.
func DetectWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return DefaultWidth
	}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

// Update draws step current of total. current is zero-based; step 0 starts a
// new cycle. The last step of a cycle ends the line, every other step
// returns the cursor to the line start.
func (b *Bar) Update(current, total int, st Stats) error {
	if total <= 0 {
		return ErrInvalidTotal
	}
	now := b.now()
	if current == 0 {
		b.begin = now
	}

	curLen := barLength * current / total
	restLen := barLength - curLen - 1

	var sb strings.Builder
	sb.WriteString(" [")
	sb.WriteString(strings.Repeat("=", max(curLen, 0)))
	sb.WriteString(">")
	sb.WriteString(strings.Repeat(".", max(restLen, 0)))
	sb.WriteString("]")

	stepTime := now.Sub(b.last)
	b.last = now
	totTime := now.Sub(b.begin)

	msg := b.message(stepTime, totTime, st)
	sb.WriteString(msg)
	sb.WriteString(strings.Repeat(" ", max(b.width-barLength-len(msg)-3, 0)))

	// Back to the middle of the bar for the counter.
	sb.WriteString(strings.Repeat("\b", max(b.width-barLength/2, 0)))
	fmt.Fprintf(&sb, " %d/%d ", current+1, total)

	if current < total-1 {
		sb.WriteString("\r")
	} else {
		sb.WriteString("\n")
	}

	if _, err := io.WriteString(b.out, sb.String()); err != nil {
		return fmt.Errorf("progress: write: %w", err)
	}
	return nil
}

func (b *Bar) message(step, tot time.Duration, st Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Step: %s", FormatDuration(step))
	fmt.Fprintf(&sb, " | Tot: %s", FormatDuration(tot))
	fmt.Fprintf(&sb, " | loss: %.4f", st.Loss)
	if st.L1 != 0 {
		fmt.Fprintf(&sb, " | L1:%.6f", st.L1)
	}
	if st.LR != 0 && st.Msg != "" {
		fmt.Fprintf(&sb, " | lr:%.6f", st.LR)
		sb.WriteString(" | " + st.Msg)
	}
	return sb.String()
}
