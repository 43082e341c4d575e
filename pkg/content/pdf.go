package content

import (
	"bytes"
	"errors"
	"io"

	"github.com/ledongthuc/pdf"
)

var (
	errNilSourceReader = errors.New("pdf source reader is nil")
	errEmptyPDFContent = errors.New("pdf content is empty")
)

// extractTextFromPDF extracts plain text from a PDF stream. Referenced
// papers usually arrive as PDFs, so the resolver needs this alongside the
// HTML path.
func extractTextFromPDF(r io.Reader) (string, error) {
	if r == nil {
		return "", errNilSourceReader
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	data := buf.Bytes()
	if len(data) == 0 {
		return "", errEmptyPDFContent
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if _, err := io.Copy(&out, textReader); err != nil {
		return "", err
	}
	return out.String(), nil
}
