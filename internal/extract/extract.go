// Package extract pulls plain text out of uploaded documents for the
// minutes generator.
package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Text returns the textual content of an uploaded document. PDFs are
// parsed page by page; everything else is treated as UTF-8 text.
func Text(data []byte, filename string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(data, []byte("%PDF")) {
		text, err := pdfText(data)
		if err != nil {
			return "", fmt.Errorf("failed to parse PDF file %s: %w", filename, err)
		}
		return text, nil
	}
	return string(data), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}
