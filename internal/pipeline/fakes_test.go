package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"

	"github.com/joseph-ayodele/receipts-extractor/internal/textextract"
)

type fakeDoc struct {
	pages  []string
	onPage func(i int)
	closed bool
}

func (d *fakeDoc) NumPages() int { return len(d.pages) }

func (d *fakeDoc) PageText(i int) (string, error) {
	if d.onPage != nil {
		d.onPage(i)
	}
	return d.pages[i], nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeTextEngine struct {
	pages  []string
	onPage func(i int)
	err    error
	docs   []*fakeDoc
}

func (e *fakeTextEngine) Open([]byte) (textextract.Document, error) {
	if e.err != nil {
		return nil, e.err
	}
	d := &fakeDoc{pages: e.pages, onPage: e.onPage}
	e.docs = append(e.docs, d)
	return d, nil
}

type fakeRasterDoc struct {
	rendered []int
	scales   []float64
	closed   bool
}

func (d *fakeRasterDoc) Render(_ context.Context, page int, scale float64) (image.Image, error) {
	d.rendered = append(d.rendered, page)
	d.scales = append(d.scales, scale)
	return image.NewGray(image.Rect(0, 0, 10, 10)), nil
}

func (d *fakeRasterDoc) Close() error {
	d.closed = true
	return nil
}

type fakeRasterizer struct {
	docs []*fakeRasterDoc
}

func (r *fakeRasterizer) Open(context.Context, []byte) (textextract.RasterDocument, error) {
	d := &fakeRasterDoc{}
	r.docs = append(r.docs, d)
	return d, nil
}

type fakeOCR struct {
	mu    sync.Mutex
	text  string
	conf  float64
	err   error
	calls int
}

func (o *fakeOCR) Recognize(_ context.Context, _ image.Image, _ string, progress func(int)) (textextract.OCRText, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return textextract.OCRText{}, o.err
	}
	progress(50)
	return textextract.OCRText{Text: o.text, Confidence: o.conf}, nil
}

func (o *fakeOCR) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func pngBytes(w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
