package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressDisplay renders the fetch loop as a single rewritten status line.
// In debug mode every post gets its own line instead.
type ProgressDisplay struct {
	mu              sync.Mutex
	target          string
	processed       int
	accepted        int
	failed          int
	lastID          string
	bytesDownloaded int64
	startTime       time.Time
	isDebug         bool
}

// NewProgressDisplay creates a display for one fetch of target (a user or a tag)
func NewProgressDisplay(target string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		target:    target,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// Accepted records a downloaded post
func (p *ProgressDisplay) Accepted(id string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accepted++
	p.bytesDownloaded += size
	p.lastID = id

	if p.isDebug {
		fmt.Fprintf(out, "%s %s • %s\n", Green("✓"), id, humanize.Bytes(uint64(size)))
		return
	}
	p.printProgress()
}

// Failed records a post whose image could not be downloaded
func (p *ProgressDisplay) Failed(id string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	if p.isDebug {
		fmt.Fprintf(out, "%s %s • %v\n", Red("✗"), id, err)
		return
	}
	p.printProgress()
}

// Checked updates the candidate count
func (p *ProgressDisplay) Checked(processed, accepted int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed = processed
	p.accepted = accepted
	if !p.isDebug {
		p.printProgress()
	}
}

// Complete ends the status line
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !quiet && !p.isDebug {
		fmt.Fprintln(out)
	}
}

// Line returns the current status line without printing it
func (p *ProgressDisplay) Line() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.line()
}

func (p *ProgressDisplay) line() string {
	parts := []string{
		Cyan(p.target),
		fmt.Sprintf("%s matched", humanize.Comma(int64(p.accepted))),
	}
	if p.processed > 0 {
		parts = append(parts, fmt.Sprintf("%s checked", humanize.Comma(int64(p.processed))))
	}
	parts = append(parts,
		humanize.Bytes(uint64(p.bytesDownloaded)),
		formatDuration(time.Since(p.startTime)),
	)
	if p.lastID != "" {
		parts = append(parts, Dim(p.lastID))
	}
	if p.failed > 0 {
		parts = append(parts, Red(fmt.Sprintf("%d failed", p.failed)))
	}
	return strings.Join(parts, " • ")
}

func (p *ProgressDisplay) printProgress() {
	if quiet {
		return
	}
	fmt.Fprintf(out, "\r%s\r%s", strings.Repeat(" ", 100), p.line())
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
