package extractor

import (
	"context"
	stderrors "errors"
	"strings"
	"unicode/utf8"

	"claimsight/internal/common/errors"
)

var errInvalidEncoding = stderrors.New("file is not valid UTF-8 text")

// Text handles plain text and markdown files.
type Text struct{}

func (t *Text) ContentType() string { return "text/plain" }

func (t *Text) Extract(_ context.Context, data []byte, filename string) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.NewExtractionFailedError(filename, errInvalidEncoding)
	}
	return strings.TrimSpace(string(data)), nil
}
