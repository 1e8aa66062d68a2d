// Package resume reads the candidate's resume from disk and extracts its text.
package resume

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Format identifies how a resume file was decoded.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var (
	// ErrNotFound is returned when the resume path does not exist.
	ErrNotFound = errors.New("resume file not found")
	// ErrEmpty is returned when no text could be extracted from the resume.
	ErrEmpty = errors.New("resume has no readable text")
)

const docxBody = "word/document.xml"

// Document is a resume loaded into memory.
type Document struct {
	Path   string
	Format Format
	Text   string
}

// Load reads the file at path and extracts its text.
func Load(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("resume path is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat resume %q: %w", path, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("resume %q is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume %q: %w", path, err)
	}

	format := detect(path, data)

	text, err := extract(format, data)
	if err != nil {
		return nil, fmt.Errorf("extract %s resume %q: %w", format, path, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}

	return &Document{Path: path, Format: format, Text: text}, nil
}

func extract(format Format, data []byte) (string, error) {
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDOCX:
		return extractDOCX(data)
	default:
		if !utf8.Valid(data) {
			return "", errors.New("file is neither pdf, docx nor utf-8 text")
		}
		return string(data), nil
	}
}

// detect prefers the file content over the extension, so a resume saved
// without a suffix is still decoded correctly.
func detect(path string, data []byte) Format {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return FormatPDF
	}

	if isDOCX(data) {
		return FormatDOCX
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	default:
		return FormatText
	}
}

func isDOCX(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("PK")) {
		return false
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}

	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == docxBody {
			return true
		}
	}

	return false
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var body *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == docxBody {
			body = f
			break
		}
	}
	if body == nil {
		return "", fmt.Errorf("%s not found", docxBody)
	}

	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	return docxText(rc)
}

// docxText keeps character data and turns paragraph, break and tab
// elements into whitespace.
func docxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", docxBody, err)
		}

		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.StartElement:
			if t.Name.Local == "tab" {
				buf.WriteString("\t")
			}
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}

	return buf.String(), nil
}
