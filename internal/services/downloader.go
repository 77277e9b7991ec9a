package services

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ralverson/vela/internal/lib"
	"github.com/ralverson/vela/internal/models"
	"github.com/ralverson/vela/internal/ui"
)

// contentDispositionFilename extracts the server-suggested filename from a
// Content-Disposition header.
var contentDispositionFilename = regexp.MustCompile(`filename=(\S+)`)

// DefaultDestinationDir is used when the caller does not name a directory.
const DefaultDestinationDir = "temp"

// Downloader streams completed job results to local files.
type Downloader struct {
	httpClient   *HTTPClient
	logger       *lib.Logger
	showProgress bool
	meter        *ui.TransferMeter
}

// NewDownloader creates a downloader. showProgress enables per-file
// terminal progress bars; batch runs turn it off to keep concurrent output
// readable.
func NewDownloader(httpClient *HTTPClient, logger *lib.Logger, showProgress bool) *Downloader {
	return &Downloader{
		httpClient:   httpClient,
		logger:       logger,
		showProgress: showProgress,
		meter:        ui.NewTransferMeter(),
	}
}

// Meter returns the accumulated transfer statistics across every download
// this downloader has performed.
func (d *Downloader) Meter() *ui.TransferMeter {
	return d.meter
}

// DownloadResults fetches every result of a completed job into destDir and
// returns the paths of the files written, in result order. The directory is
// created if missing; an empty destDir falls back to DefaultDestinationDir.
//
// A result the server reports as 404 is logged and skipped: archived
// products can expire between job completion and download, and the rest of
// the batch is still worth having. Any other HTTP error aborts the whole
// download.
func (d *Downloader) DownloadResults(job *CompletedJob, destDir string) ([]string, error) {
	if destDir == "" {
		destDir = DefaultDestinationDir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, lib.ErrFileSystem(destDir, err)
	}

	results := job.Results()
	files := make([]string, 0, len(results))
	for _, entry := range results {
		file, err := d.downloadFile(entry, destDir)
		if err != nil {
			return files, err
		}
		if file == "" {
			continue
		}
		files = append(files, file)
	}

	d.logger.Info("Job results downloaded", "job", job.Location(), "files", len(files), "dir", destDir)
	return files, nil
}

// downloadFile streams one result to disk. Returns "" with no error when
// the server no longer has the file.
func (d *Downloader) downloadFile(entry models.ResultEntry, destDir string) (string, error) {
	resp, err := d.httpClient.Get(entry.Href, nil)
	if err != nil {
		return "", lib.ErrTransport(entry.Href, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		d.logger.Warn("Result file unavailable, skipping", "url", entry.Href)
		d.meter.RecordSkip()
		return "", nil
	}
	if resp.StatusCode >= 400 {
		body := ReadBody(resp)
		return "", lib.ErrTransport(entry.Href, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)))
	}
	defer func() { _ = resp.Body.Close() }()

	filename := FilenameForResult(entry.Href, resp.Header.Get("Content-Disposition"))
	destPath := filepath.Join(destDir, filename)

	out, err := os.Create(destPath)
	if err != nil {
		return "", lib.ErrFileSystem(destPath, err)
	}
	defer func() { _ = out.Close() }()

	var dest io.Writer = out
	var bar *ui.DownloadBar
	if d.showProgress {
		bar = ui.NewDownloadBar(resp.ContentLength, filename)
		dest = io.MultiWriter(out, bar.Writer())
	}

	written, err := io.Copy(dest, resp.Body)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return "", lib.ErrFileSystem(destPath, err)
	}

	d.meter.RecordFile(written)
	lib.LogDownload(d.logger, entry.Href, destPath, written)
	return destPath, nil
}

// FilenameForResult chooses the local filename for a result URL. The
// Content-Disposition suggestion wins when present; otherwise the last URL
// path segment is used, with any query string stripped.
func FilenameForResult(href string, contentDisposition string) string {
	if m := contentDispositionFilename.FindStringSubmatch(contentDisposition); m != nil {
		return strings.Trim(m[1], `"`)
	}

	name := path.Base(href)
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx]
	}
	return name
}
