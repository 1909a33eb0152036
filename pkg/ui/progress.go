// Package ui renders scan progress to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Progress is a single-line status display. On a TTY it redraws in
// place; otherwise it falls back to plain line output.
type Progress struct {
	out   io.Writer
	isTTY bool
	width int
	quiet bool
}

// NewProgress creates a progress display writing to stderr.
func NewProgress(quiet bool) *Progress {
	p := &Progress{out: os.Stderr, quiet: quiet, width: 80}
	fd := int(os.Stderr.Fd())
	if term.IsTerminal(fd) {
		p.isTTY = true
		if w, _, err := term.GetSize(fd); err == nil && w > 20 {
			p.width = w
		}
	}
	return p
}

// Update renders the current progress percentage and status message.
func (p *Progress) Update(progress int, message string) {
	if p.quiet {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	if !p.isTTY {
		fmt.Fprintf(p.out, "%3d%% %s\n", progress, message)
		return
	}

	barWidth := 24
	filled := progress * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("\r[%s] %3d%% %s", bar, progress, message)
	if len(line) > p.width {
		line = line[:p.width]
	}
	fmt.Fprintf(p.out, "%s\033[K", line)
}

// BatchStatus renders batch scan progress counters.
func (p *Progress) BatchStatus(done, failed, active, queued, total int) {
	if p.quiet {
		return
	}
	line := fmt.Sprintf("urls: %d/%d done (%d failed) | active: %d queued: %d",
		done, total, failed, active, queued)
	if p.isTTY {
		fmt.Fprintf(p.out, "\r%s\033[K", line)
		return
	}
	fmt.Fprintln(p.out, line)
}

// Done terminates the in-place line.
func (p *Progress) Done() {
	if p.quiet || !p.isTTY {
		return
	}
	fmt.Fprintln(p.out)
}
