package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ralverson/vela/internal/models"
)

func newTestDownloader() *Downloader {
	return NewDownloader(testHTTPClient(), testLogger(), false)
}

func completedJobWith(hrefs ...string) *CompletedJob {
	results := make([]models.ResultEntry, 0, len(hrefs))
	for i, href := range hrefs {
		results = append(results, models.ResultEntry{Href: href, Name: fmt.Sprintf("result-%d", i+1)})
	}
	return &CompletedJob{location: "https://archive.example/data/async/job-1", results: results}
}

func TestDownloader_ContentDispositionNaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename=image.fits`)
		fmt.Fprint(w, "FITSDATA")
	}))
	defer server.Close()

	destDir := t.TempDir()
	files, err := newTestDownloader().DownloadResults(completedJobWith(server.URL+"/xyz?token=abc"), destDir)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(destDir, "image.fits"), files[0])

	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "FITSDATA", string(content))
}

func TestDownloader_FilenameFromURLPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "spectrum")
	}))
	defer server.Close()

	destDir := t.TempDir()
	files, err := newTestDownloader().DownloadResults(
		completedJobWith(server.URL+"/results/spectrum_1.xml?token=abc&x=1"), destDir)
	require.NoError(t, err)

	require.Len(t, files, 1)
	// No Content-Disposition: last path segment, query stripped.
	assert.Equal(t, filepath.Join(destDir, "spectrum_1.xml"), files[0])
}

func TestDownloader_SkipsMissingResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "data for "+r.URL.Path)
	}))
	defer server.Close()

	destDir := t.TempDir()
	downloader := newTestDownloader()
	files, err := downloader.DownloadResults(completedJobWith(
		server.URL+"/a.fits",
		server.URL+"/gone",
		server.URL+"/b.fits",
	), destDir)

	// A vanished result is skipped, the rest of the batch survives.
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(destDir, "a.fits"), files[0])
	assert.Equal(t, filepath.Join(destDir, "b.fits"), files[1])
	assert.Equal(t, int64(2), downloader.Meter().Files())
}

func TestDownloader_ServerErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "boom", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	destDir := t.TempDir()
	files, err := newTestDownloader().DownloadResults(completedJobWith(
		server.URL+"/a.fits",
		server.URL+"/broken",
		server.URL+"/c.fits",
	), destDir)

	require.Error(t, err)
	// The file before the failure was already written.
	assert.Len(t, files, 1)
}

func TestDownloader_CreatesDestinationDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data")
	}))
	defer server.Close()

	destDir := filepath.Join(t.TempDir(), "nested", "out")
	files, err := newTestDownloader().DownloadResults(completedJobWith(server.URL+"/a.fits"), destDir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	info, err := os.Stat(destDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFilenameForResult(t *testing.T) {
	tests := []struct {
		name               string
		href               string
		contentDisposition string
		want               string
	}{
		{
			name:               "content disposition wins",
			href:               "https://archive.example/results/xyz?token=abc",
			contentDisposition: "attachment; filename=cube_cutout.fits",
			want:               "cube_cutout.fits",
		},
		{
			name:               "quoted filename is unquoted",
			href:               "https://archive.example/results/xyz",
			contentDisposition: `attachment; filename="spectrum.xml"`,
			want:               "spectrum.xml",
		},
		{
			name: "query stripped from path fallback",
			href: "https://archive.example/results/xyz.fits?token=abc",
			want: "xyz.fits",
		},
		{
			name: "plain path fallback",
			href: "https://archive.example/results/image.fits",
			want: "image.fits",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilenameForResult(tt.href, tt.contentDisposition))
		})
	}
}
