package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// DownloadBar wraps the progressbar library for byte-oriented transfer
// feedback. Result file sizes come from Content-Length when the server
// sends one; a total of -1 renders an indeterminate spinner-style bar.
type DownloadBar struct {
	bar       *progressbar.ProgressBar
	filename  string
	startTime time.Time
}

// NewDownloadBar creates a progress bar for one result file transfer.
func NewDownloadBar(total int64, filename string) *DownloadBar {
	return newDownloadBar(total, filename, os.Stderr)
}

// NewDownloadBarWithWriter creates a download bar writing to a specific
// writer, for tests.
func NewDownloadBarWithWriter(total int64, filename string, writer io.Writer) *DownloadBar {
	return newDownloadBar(total, filename, writer)
}

func newDownloadBar(total int64, filename string, writer io.Writer) *DownloadBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(filename),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionSetWriter(writer),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(false),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(writer) }),
	)

	return &DownloadBar{
		bar:       bar,
		filename:  filename,
		startTime: time.Now(),
	}
}

// Writer returns an io.Writer that advances the bar as bytes pass through.
// Wire it into an io.MultiWriter alongside the destination file.
func (d *DownloadBar) Writer() io.Writer {
	return d.bar
}

// Finish completes the bar.
func (d *DownloadBar) Finish() error {
	return d.bar.Finish()
}

// Clear removes the bar from the terminal.
func (d *DownloadBar) Clear() error {
	return d.bar.Clear()
}

// Elapsed returns time since the transfer started.
func (d *DownloadBar) Elapsed() time.Duration {
	return time.Since(d.startTime)
}

// Spinner provides feedback for waits with unknown duration, such as
// polling a server-side extraction job.
type Spinner struct {
	description string
	startTime   time.Time
	active      bool
	out         io.Writer
}

// NewSpinner creates a spinner for unknown-duration operations.
func NewSpinner(description string) *Spinner {
	return &Spinner{
		description: description,
		startTime:   time.Now(),
		out:         os.Stderr,
	}
}

// Start begins the spinner.
func (s *Spinner) Start() {
	s.active = true
	s.startTime = time.Now()
	fmt.Fprintf(s.out, "%s...\n", s.description)
}

// Stop ends the spinner, reporting outcome and elapsed time.
func (s *Spinner) Stop(success bool) {
	s.active = false
	elapsed := time.Since(s.startTime)

	if success {
		fmt.Fprintf(s.out, "✓ %s (completed in %v)\n", s.description, elapsed.Round(time.Millisecond))
	} else {
		fmt.Fprintf(s.out, "✗ %s (failed after %v)\n", s.description, elapsed.Round(time.Millisecond))
	}
}

// UpdateMessage updates the spinner's description while it runs. Used to
// surface job phase transitions during a wait.
func (s *Spinner) UpdateMessage(message string) {
	s.description = message
	if s.active {
		fmt.Fprintf(s.out, "\r%s... (%v elapsed)", message, time.Since(s.startTime).Round(time.Second))
	}
}

// IsActive returns whether the spinner is currently running.
func (s *Spinner) IsActive() bool {
	return s.active
}
