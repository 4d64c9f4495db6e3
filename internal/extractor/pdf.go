package extractor

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"claimsight/internal/common/errors"
)

// ErrPDFToolNotFound is returned when the pdftotext binary is missing from
// PATH.
var ErrPDFToolNotFound = stderrors.New("pdftotext not found in PATH (install poppler-utils)")

// CommandRunner executes an external command and returns its stdout.
// Injectable so tests can stub the pdftotext invocation.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDF extracts text by shelling out to pdftotext.
type PDF struct {
	runner CommandRunner
}

func NewPDF() *PDF {
	return &PDF{runner: execRunner{}}
}

// NewPDFWithRunner is used by tests to substitute the command runner.
func NewPDFWithRunner(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

func (p *PDF) ContentType() string { return "application/pdf" }

func (p *PDF) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return "", errors.NewExtractionFailedError(filename, ErrPDFToolNotFound)
	}

	tmp, err := os.CreateTemp("", "claimsight-*.pdf")
	if err != nil {
		return "", errors.NewExtractionFailedError(filename, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", errors.NewExtractionFailedError(filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", errors.NewExtractionFailedError(filename, err)
	}

	// "-" sends the extracted text to stdout.
	output, err := p.runner.Run(ctx, "pdftotext", "-layout", filepath.Clean(tmpPath), "-")
	if err != nil {
		return "", errors.NewExtractionFailedError(filename, err)
	}

	return strings.TrimSpace(string(output)), nil
}
