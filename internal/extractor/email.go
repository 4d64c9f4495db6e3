package extractor

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"claimsight/internal/common/errors"
)

// Email extracts the headers and plain-text body from an RFC 822 message.
type Email struct{}

func (e *Email) ContentType() string { return "message/rfc822" }

func (e *Email) Extract(_ context.Context, data []byte, filename string) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", errors.NewExtractionFailedError(filename, err)
	}

	body, err := extractBody(msg)
	if err != nil {
		return "", errors.NewExtractionFailedError(filename, err)
	}

	var b strings.Builder
	for _, header := range []string{"From", "To", "Date", "Subject"} {
		if value := decodeHeader(msg.Header.Get(header)); value != "" {
			b.WriteString(header)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(body)

	return strings.TrimSpace(b.String()), nil
}

// extractBody returns the message body, preferring the text/plain part of
// multipart messages.
func extractBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		body, err := io.ReadAll(msg.Body)
		return string(body), err
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		body, readErr := io.ReadAll(msg.Body)
		return string(body), readErr
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(msg.Body)
		return string(body), err
	}

	reader := multipart.NewReader(msg.Body, params["boundary"])
	var fallback string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		content, err := io.ReadAll(part)
		if err != nil {
			return "", err
		}

		if partType == "text/plain" {
			return string(content), nil
		}
		if fallback == "" && strings.HasPrefix(partType, "text/") {
			fallback = string(content)
		}
	}
	return fallback, nil
}

// decodeHeader decodes RFC 2047 encoded words, returning the raw value when
// decoding fails.
func decodeHeader(value string) string {
	decoder := mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
