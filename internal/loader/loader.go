// Package loader reads the reference document from disk.
package loader

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragbot/internal/domain"
)

// Load reads a .txt, .md or .pdf file into a Document.
func Load(path string) (domain.Document, error) {
	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		text, err = readPDF(path)
	case ".txt", ".md", ".markdown", "":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return domain.Document{}, &domain.Error{Type: domain.ErrTypeDocument, Component: "loader",
			Message: "unsupported document type " + ext}
	}
	if err != nil {
		return domain.Document{}, &domain.Error{Type: domain.ErrTypeDocument, Component: "loader",
			Message: "reading " + path, Cause: err}
	}
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, &domain.Error{Type: domain.ErrTypeDocument, Component: "loader",
			Message: "no text extracted from " + path}
	}
	return domain.Document{ID: hashString(path), Path: path, Content: text}, nil
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
