package ui

import (
	"fmt"
	"time"
)

// TransferMeter accumulates per-file download statistics for a batch and
// renders a closing summary.
type TransferMeter struct {
	startTime  time.Time
	totalFiles int64
	totalBytes int64
	skipped    int64
	failed     int64
}

// NewTransferMeter creates a meter starting now.
func NewTransferMeter() *TransferMeter {
	return &TransferMeter{startTime: time.Now()}
}

// RecordFile adds one completed file of the given size.
func (t *TransferMeter) RecordFile(bytes int64) {
	t.totalFiles++
	t.totalBytes += bytes
}

// RecordSkip counts a result that was unavailable on the server.
func (t *TransferMeter) RecordSkip() {
	t.skipped++
}

// RecordFailure counts a job that ended without downloadable results.
func (t *TransferMeter) RecordFailure() {
	t.failed++
}

// Files returns the number of completed downloads.
func (t *TransferMeter) Files() int64 {
	return t.totalFiles
}

// Bytes returns the total bytes transferred.
func (t *TransferMeter) Bytes() int64 {
	return t.totalBytes
}

// AverageBytesPerSecond returns the overall transfer rate.
func (t *TransferMeter) AverageBytesPerSecond() float64 {
	elapsed := time.Since(t.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.totalBytes) / elapsed
}

// Summary returns a one-line closing report for the batch.
func (t *TransferMeter) Summary() string {
	line := fmt.Sprintf(
		"%d files (%s) in %s | %s",
		t.totalFiles,
		FormatBytes(t.totalBytes),
		FormatDuration(time.Since(t.startTime)),
		FormatBytesPerSecond(t.AverageBytesPerSecond()),
	)
	if t.skipped > 0 {
		line += fmt.Sprintf(" | %d skipped", t.skipped)
	}
	if t.failed > 0 {
		line += fmt.Sprintf(" | %d failed", t.failed)
	}
	return line
}

// FormatBytesPerSecond formats a transfer rate as a human-readable string.
func FormatBytesPerSecond(bytesPerSec float64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	if bytesPerSec >= GB {
		return fmt.Sprintf("%.2f GB/sec", bytesPerSec/GB)
	} else if bytesPerSec >= MB {
		return fmt.Sprintf("%.2f MB/sec", bytesPerSec/MB)
	} else if bytesPerSec >= KB {
		return fmt.Sprintf("%.2f KB/sec", bytesPerSec/KB)
	}
	return fmt.Sprintf("%.0f B/sec", bytesPerSec)
}

// FormatBytes formats a byte count as a human-readable size.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	fbytes := float64(bytes)

	if bytes >= TB {
		return fmt.Sprintf("%.2f TB", fbytes/TB)
	} else if bytes >= GB {
		return fmt.Sprintf("%.2f GB", fbytes/GB)
	} else if bytes >= MB {
		return fmt.Sprintf("%.2f MB", fbytes/MB)
	} else if bytes >= KB {
		return fmt.Sprintf("%.2f KB", fbytes/KB)
	}
	return fmt.Sprintf("%d B", bytes)
}

// FormatDuration formats a duration in a compact human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}
