package content

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	errEmptyPDFPath    = errors.New("pdf path is empty")
	errNilSourceReader = errors.New("pdf source reader is nil")
	errEmptyPDFContent = errors.New("pdf content is empty")
)

// ExtractTextFromPDFFile extracts text content from a PDF located at the given filesystem path.
func ExtractTextFromPDFFile(path string) (string, error) {
	if path == "" {
		return "", errEmptyPDFPath
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return plainText(reader)
}

// ExtractTextFromPDFReader extracts text from an uploaded paper or file body.
func ExtractTextFromPDFReader(r io.Reader) (string, error) {
	if r == nil {
		return "", errNilSourceReader
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return ExtractTextFromPDFBytes(data)
}

// ExtractTextFromPDFBytes extracts text from an in-memory PDF document.
func ExtractTextFromPDFBytes(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errEmptyPDFContent
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	return plainText(doc)
}

func plainText(doc *pdf.Reader) (string, error) {
	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
