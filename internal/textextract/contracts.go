// Package textextract acquires raw text for a document: the PDF text layer
// when it is usable, rasterization plus OCR otherwise.
package textextract

import (
	"context"
	"image"
)

// TextEngine opens a PDF for text extraction.
type TextEngine interface {
	Open(data []byte) (Document, error)
}

// Document is an open PDF. Pages are zero-based.
type Document interface {
	NumPages() int
	PageText(i int) (string, error)
	Close() error
}

// Rasterizer opens a PDF for page rendering.
type Rasterizer interface {
	Open(ctx context.Context, data []byte) (RasterDocument, error)
}

// RasterDocument renders zero-based pages at scale (1.0 = 72 DPI).
type RasterDocument interface {
	Render(ctx context.Context, page int, scale float64) (image.Image, error)
	Close() error
}

// OCREngine recognizes text in a pixel buffer. progress receives 0..100.
type OCREngine interface {
	Recognize(ctx context.Context, img image.Image, lang string, progress func(int)) (OCRText, error)
}

type OCRText struct {
	Text       string
	Confidence float64 // 0..100
}
