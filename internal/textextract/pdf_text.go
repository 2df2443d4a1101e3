package textextract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFTextEngine reads the text layer with ledongthuc/pdf.
type PDFTextEngine struct{}

func NewPDFTextEngine() PDFTextEngine { return PDFTextEngine{} }

func (PDFTextEngine) Open(data []byte) (doc Document, err error) {
	if len(data) == 0 {
		return nil, errors.New("empty pdf")
	}
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("open pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfDocument{r: r}, nil
}

type pdfDocument struct {
	r *pdf.Reader
}

func (d *pdfDocument) NumPages() int {
	if d.r == nil {
		return 0
	}
	return d.r.NumPage()
}

func (d *pdfDocument) PageText(i int) (text string, err error) {
	if d.r == nil {
		return "", errors.New("document closed")
	}
	if i < 0 || i >= d.r.NumPage() {
		return "", fmt.Errorf("page %d out of range", i)
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("panic during text extraction on page %d: %v", i+1, r)
		}
	}()
	page := d.r.Page(i + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d: %w", i+1, err)
	}
	return text, nil
}

// Close drops the reader. The document is backed by memory, so there is
// nothing else to release.
func (d *pdfDocument) Close() error {
	d.r = nil
	return nil
}
