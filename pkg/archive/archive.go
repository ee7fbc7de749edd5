// Package archive packages generated files into a single zip.
package archive

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// WriteZip creates a compressed archive at dest containing each input
// file under its base filename, in the order given. Missing inputs are
// logged and skipped; an archive is produced even when every input is
// missing.
func WriteZip(dest string, files []string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close() //nolint:errcheck

	writer := zip.NewWriter(out)
	writer.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	for _, path := range files {
		if err := addFile(writer, path, logger); err != nil {
			writer.Close() //nolint:errcheck
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addFile(writer *zip.Writer, path string, logger *zap.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Sugar().Warnw("archive input missing, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("open archive input %s: %w", path, err)
	}
	defer file.Close() //nolint:errcheck

	entry, err := writer.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create archive entry %s: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("write archive entry %s: %w", filepath.Base(path), err)
	}
	return nil
}
