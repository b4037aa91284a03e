package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"zoomarchive/internal/zoom"
)

// Result describes a completed download.
type Result struct {
	Path  string
	Bytes int64
}

// Downloader streams recording files into the archive layout.
type Downloader struct {
	Layout Layout
	HTTP   *http.Client
	Log    *slog.Logger
}

// NewDownloader builds a downloader. Recording files can be large, so the
// client has no overall timeout; cancellation comes from ctx.
func NewDownloader(layout Layout, log *slog.Logger) *Downloader {
	return &Downloader{Layout: layout, HTTP: &http.Client{}, Log: log}
}

// Download GETs url and writes the body to <dir>/<name>, where dir derives
// from the file's recording start and the meeting topic. It succeeds only
// after the body is fully copied, synced and the file closed. A partially
// written file is left on disk.
func (d *Downloader) Download(ctx context.Context, url, name string, file zoom.RecordingFile, meeting zoom.Meeting) (Result, error) {
	if url == "" || name == "" || file.RecordingStart.IsZero() || meeting.Topic == "" {
		return Result{}, errors.New("invalid input: missing required data for downloading recording")
	}

	dir := d.Layout.Dir(file.RecordingStart, meeting.Topic)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, err
	}
	resp, err := d.HTTP.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Result{}, fmt.Errorf("download error %s: %s", resp.Status, string(body))
	}

	n, err := writeFile(path, resp.Body)
	if err != nil {
		return Result{}, err
	}
	if d.Log != nil {
		d.Log.Info("recording downloaded", slog.String("path", path), slog.Int64("bytes", n))
	}
	return Result{Path: path, Bytes: n}, nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close()
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return n, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", path, err)
	}
	return n, nil
}
