package textextract

import (
	"context"
	"errors"
	"image"
)

type fakeDoc struct {
	pages  []string
	failAt int // zero-based page that errors, -1 for none
	reads  []int
	closed bool
}

func newFakeDoc(pages ...string) *fakeDoc { return &fakeDoc{pages: pages, failAt: -1} }

func (d *fakeDoc) NumPages() int { return len(d.pages) }

func (d *fakeDoc) PageText(i int) (string, error) {
	d.reads = append(d.reads, i)
	if i == d.failAt {
		return "", errors.New("bad content stream")
	}
	return d.pages[i], nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeRaster struct {
	rendered []int
	scales   []float64
	fail     bool
}

func (r *fakeRaster) Render(_ context.Context, page int, scale float64) (image.Image, error) {
	if r.fail {
		return nil, errors.New("render failed")
	}
	r.rendered = append(r.rendered, page)
	r.scales = append(r.scales, scale)
	// encode the page number in the width so the OCR fake can tell pages apart
	return image.NewGray(image.Rect(0, 0, page+1, 1)), nil
}

func (r *fakeRaster) Close() error { return nil }

type fakeOCR struct {
	texts []string // indexed by image width - 1
	conf  float64
	err   error
	calls int
	langs []string
}

func (o *fakeOCR) Recognize(_ context.Context, img image.Image, lang string, progress func(int)) (OCRText, error) {
	o.calls++
	o.langs = append(o.langs, lang)
	if o.err != nil {
		return OCRText{}, o.err
	}
	progress(50)
	idx := img.Bounds().Dx() - 1
	text := ""
	if idx < len(o.texts) {
		text = o.texts[idx]
	}
	return OCRText{Text: text, Confidence: o.conf}, nil
}
