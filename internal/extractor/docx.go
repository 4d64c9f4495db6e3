package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	stderrors "errors"
	"io"
	"strings"

	"claimsight/internal/common/errors"
)

// Docx extracts paragraph text from word/document.xml inside the OOXML
// archive.
type Docx struct{}

func (d *Docx) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

func (d *Docx) Extract(_ context.Context, data []byte, filename string) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewExtractionFailedError(filename, err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", errors.NewExtractionFailedError(filename, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", errors.NewExtractionFailedError(filename, err)
		}

		text, err := parseDocumentXML(content)
		if err != nil {
			return "", errors.NewExtractionFailedError(filename, err)
		}
		return text, nil
	}

	return "", errors.NewExtractionFailedError(filename, stderrors.New("word/document.xml not found in archive"))
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, text := range r.Text {
				b.WriteString(text.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
