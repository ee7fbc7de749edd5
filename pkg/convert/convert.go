// Package convert turns filled native-format documents into PDFs by
// invoking an external rendering engine out of process.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Converter renders a native-format document to PDF at outputPath.
type Converter interface {
	Convert(ctx context.Context, nativePath, outputPath string) error
}

// ConversionError distinguishes rendering failures from plain I/O errors.
type ConversionError struct {
	Stage string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion failed (%s): %v", e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// IsConversionError reports whether err came from the rendering engine.
func IsConversionError(err error) bool {
	var ce *ConversionError
	return errors.As(err, &ce)
}

// LibreOfficeConverter shells out to a headless LibreOffice binary.
// The engine is a shared external resource; callers serialize invocations
// within a batch and apply the configured timeout per document.
type LibreOfficeConverter struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewLibreOffice builds a converter around the given binary.
func NewLibreOffice(binary string, timeout time.Duration, logger *zap.Logger) *LibreOfficeConverter {
	if binary == "" {
		binary = "soffice"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LibreOfficeConverter{binary: binary, timeout: timeout, logger: logger}
}

// Convert renders nativePath to PDF and moves the result to outputPath.
// The engine writes its output next to the input under a conventional
// name (same basename, .pdf extension); a missing conventional file after
// a clean exit is still a conversion failure.
func (c *LibreOfficeConverter) Convert(ctx context.Context, nativePath, outputPath string) error {
	outDir := filepath.Dir(outputPath)

	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.binary, "--headless", "--convert-to", "pdf", nativePath, "--outdir", outDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return &ConversionError{Stage: "render", Err: fmt.Errorf("engine timed out after %s", c.timeout)}
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return &ConversionError{Stage: "spawn", Err: err}
		}
		return &ConversionError{Stage: "render", Err: fmt.Errorf("%s: %w", detail, err)}
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		c.logger.Sugar().Debugw("engine stderr", "output", msg)
	}

	conventional := conventionalOutput(nativePath, outDir)
	if _, err := os.Stat(conventional); err != nil {
		return &ConversionError{Stage: "collect", Err: fmt.Errorf("engine produced no output at %s", conventional)}
	}

	if conventional == outputPath {
		return nil
	}
	if err := os.Rename(conventional, outputPath); err != nil {
		return &ConversionError{Stage: "collect", Err: fmt.Errorf("relocate output: %w", err)}
	}
	return nil
}

func conventionalOutput(nativePath, outDir string) string {
	base := filepath.Base(nativePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, stem+".pdf")
}
