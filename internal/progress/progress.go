// Package progress wraps terminal progress display for long-running scans.
package progress

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

const updateInterval = 50 * time.Millisecond

// Bar wraps a spinner-mode progressbar with enabled/disabled handling.
// Backup scans have no known total upfront, so the bar always runs as a
// spinner with a live stats description. All methods are no-ops when disabled.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New creates a progress spinner writing to stderr.
// If enabled=false, returns a Bar where all methods are no-ops.
func New(enabled bool) *Bar {
	if !enabled {
		return &Bar{}
	}

	return &Bar{bar: progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(updateInterval),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetElapsedTime(false),
	)}
}

// Describe updates the spinner description with the current stats line.
func (b *Bar) Describe(s fmt.Stringer) {
	if b.bar != nil {
		b.bar.Describe(s.String())
	}
}

// Finish clears the spinner and prints the final stats line to stderr.
func (b *Bar) Finish(s fmt.Stringer) {
	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	fmt.Fprintln(os.Stderr, s.String())
}
