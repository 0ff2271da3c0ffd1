// Package extract provides per-page text extraction from PDF files.
package extract

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// Pages reads the PDF at path and returns the plain text of each page, in
// order. Pages that cannot be parsed individually are returned as empty
// strings rather than failing the whole document. Returns an error only when
// the file cannot be read or is not a parseable PDF.
func Pages(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return pagesFromBytes(content)
}

func pagesFromBytes(content []byte) ([]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// One broken page should not sink the document.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
