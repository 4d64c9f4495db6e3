// Package extractor converts uploaded files to plain text. One extractor per
// supported format; ForFile selects by extension.
package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"claimsight/internal/common/errors"
)

// Extractor turns raw file bytes into plain text ready for chunking.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
	ContentType() string
}

// ForFile returns the extractor for the file's extension, or an
// UNSUPPORTED_FILE_TYPE error.
func ForFile(filename string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return &Text{}, nil
	case ".docx":
		return &Docx{}, nil
	case ".eml":
		return &Email{}, nil
	case ".pdf":
		return NewPDF(), nil
	default:
		return nil, errors.NewUnsupportedFileTypeError(filepath.Ext(filename))
	}
}

// SupportedExtensions lists the extensions ForFile accepts.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".docx", ".eml", ".pdf"}
}
