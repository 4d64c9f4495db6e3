package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     interface{}
	}{
		{"policy.txt", &Text{}},
		{"notes.MD", &Text{}},
		{"contract.docx", &Docx{}},
		{"claim.eml", &Email{}},
		{"policy.pdf", &PDF{}},
	}

	for _, tt := range tests {
		ext, err := ForFile(tt.filename)
		require.NoError(t, err, tt.filename)
		assert.IsType(t, tt.want, ext, tt.filename)
	}
}

func TestForFile_Unsupported(t *testing.T) {
	for _, filename := range []string{"image.png", "data.csv", "archive.zip", "noextension"} {
		_, err := ForFile(filename)
		require.Error(t, err, filename)
		assert.Contains(t, err.Error(), "UNSUPPORTED_FILE_TYPE")
	}
}

func TestText_Extract(t *testing.T) {
	e := &Text{}

	text, err := e.Extract(context.Background(), []byte("  Policy covers knee surgery.\n"), "policy.txt")
	require.NoError(t, err)
	assert.Equal(t, "Policy covers knee surgery.", text)
}

func TestText_ExtractRejectsBinary(t *testing.T) {
	e := &Text{}

	_, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0x00, 0x80}, "policy.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTION_FAILED")
}

// buildDocx assembles a minimal OOXML archive around the given document XML.
func buildDocx(t *testing.T, documentXML string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDocx_Extract(t *testing.T) {
	data := buildDocx(t, `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>Knee surgery is covered</t></r><r><t> after 90 days.</t></r></p>
    <p><r><t>Exclusions apply per Section 7.</t></r></p>
  </body>
</document>`)

	e := &Docx{}
	text, err := e.Extract(context.Background(), data, "policy.docx")
	require.NoError(t, err)
	assert.Equal(t, "Knee surgery is covered after 90 days.\nExclusions apply per Section 7.", text)
}

func TestDocx_ExtractNotAZip(t *testing.T) {
	e := &Docx{}
	_, err := e.Extract(context.Background(), []byte("not an archive"), "policy.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTION_FAILED")
}

func TestDocx_ExtractMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	e := &Docx{}
	_, err = e.Extract(context.Background(), buf.Bytes(), "policy.docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTION_FAILED")
}

func TestEmail_ExtractPlain(t *testing.T) {
	raw := "From: claims@insurer.example\r\n" +
		"To: member@example.com\r\n" +
		"Subject: Claim CLM-1042 update\r\n" +
		"Date: Mon, 04 Aug 2025 10:00:00 +0000\r\n" +
		"\r\n" +
		"Your claim for knee surgery has been received.\r\n"

	e := &Email{}
	text, err := e.Extract(context.Background(), []byte(raw), "claim.eml")
	require.NoError(t, err)

	assert.Contains(t, text, "From: claims@insurer.example")
	assert.Contains(t, text, "Subject: Claim CLM-1042 update")
	assert.Contains(t, text, "Your claim for knee surgery has been received.")
}

func TestEmail_ExtractMultipart(t *testing.T) {
	raw := "From: claims@insurer.example\r\n" +
		"Subject: Decision\r\n" +
		"Content-Type: multipart/alternative; boundary=BOUND\r\n" +
		"\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>Approved</p>\r\n" +
		"--BOUND\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Your claim has been approved.\r\n" +
		"--BOUND--\r\n"

	e := &Email{}
	text, err := e.Extract(context.Background(), []byte(raw), "claim.eml")
	require.NoError(t, err)

	assert.Contains(t, text, "Your claim has been approved.")
	assert.NotContains(t, text, "<p>Approved</p>")
}

func TestEmail_ExtractInvalid(t *testing.T) {
	e := &Email{}
	_, err := e.Extract(context.Background(), []byte("no headers here"), "claim.eml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTION_FAILED")
}

type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func TestPDF_ExtractWithMockRunner(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext not in PATH, skipping mock runner test")
	}

	runner := &mockRunner{output: []byte("Policy covers knee surgery.\n")}
	e := NewPDFWithRunner(runner)

	text, err := e.Extract(context.Background(), []byte("%PDF-1.4 fake"), "policy.pdf")
	require.NoError(t, err)

	assert.Equal(t, "Policy covers knee surgery.", text)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Contains(t, runner.args, "-layout")
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
}

func TestPDF_ExtractRunnerError(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext not in PATH, skipping runner error test")
	}

	e := NewPDFWithRunner(&mockRunner{err: assert.AnError})

	_, err := e.Extract(context.Background(), []byte("%PDF-1.4 fake"), "policy.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXTRACTION_FAILED")
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".docx")
	assert.Contains(t, exts, ".eml")
	assert.Contains(t, exts, ".txt")
}
