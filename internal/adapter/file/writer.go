// Package file writes reports as JSON to a local file or a stream.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/covid-trends-etl/internal/report"
)

// Writer is a report sink. With an output path it skips reports built from
// the same upstream payloads as the last written one, tracked through a
// checksum file. Without one it streams every report to out.
type Writer struct {
	path         string
	checksumPath string
	out          io.Writer
	logger       *slog.Logger
}

// NewWriter creates a Writer. An empty path sends reports to out.
func NewWriter(path, checksumPath string, out io.Writer, logger *slog.Logger) *Writer {
	return &Writer{
		path:         path,
		checksumPath: checksumPath,
		out:          out,
		logger:       logger,
	}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "file" }

// Write encodes r as indented JSON. It returns report.ErrUnchanged without
// touching the output when the checksum file already holds r's digest.
func (w *Writer) Write(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if w.path == "" {
		if _, err := w.out.Write(data); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		return nil
	}

	digest := r.ChecksumDigest()
	if digest != "" && w.checksumPath != "" {
		prev, err := os.ReadFile(w.checksumPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read checksum file: %w", err)
		}
		if err == nil && string(prev) == digest {
			w.logger.Warn("not writing report because data hasn't changed", "path", w.path)
			return report.ErrUnchanged
		}
	}

	if err := writeAtomic(w.path, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	w.logger.Info("report saved", "path", w.path, "figures", len(r.Figures))

	// The digest must never be newer than the output it describes.
	if digest != "" && w.checksumPath != "" {
		if err := writeAtomic(w.checksumPath, []byte(digest)); err != nil {
			return fmt.Errorf("write checksum file: %w", err)
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
