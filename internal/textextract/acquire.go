package textextract

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
)

// Thresholds decide when a PDF text layer is too thin to trust.
type Thresholds struct {
	LowTextThreshold  int     // a page with fewer trimmed chars is low-text
	LowTextPageRatio  float64 // OCR when low-text pages / pages exceeds this
	MinTotalTextChars int     // OCR when the whole document has fewer trimmed chars
}

func DefaultThresholds() Thresholds {
	return Thresholds{LowTextThreshold: 50, LowTextPageRatio: 0.5, MinTotalTextChars: 100}
}

// PageText is the text layer of one page. Page is one-based.
type PageText struct {
	Page    int
	Text    string
	Chars   int
	LowText bool
}

// TextLayer is the extracted text of a whole PDF.
type TextLayer struct {
	Pages        []PageText
	TotalChars   int
	LowTextPages int
}

// Text joins the page texts in page order.
func (l TextLayer) Text() string {
	parts := make([]string, 0, len(l.Pages))
	for _, p := range l.Pages {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ExtractText reads every page of doc in order. check runs before each page
// and stops the loop when it returns an error. onPage may be nil.
func ExtractText(doc Document, th Thresholds, check func() error, onPage func(current, total int)) (TextLayer, error) {
	total := doc.NumPages()
	layer := TextLayer{Pages: make([]PageText, 0, total)}
	for i := 0; i < total; i++ {
		if check != nil {
			if err := check(); err != nil {
				return layer, err
			}
		}
		raw, err := doc.PageText(i)
		if err != nil {
			return layer, common.NewExtractionError(common.CodeTextExtraction,
				fmt.Sprintf("text extraction failed on page %d", i+1), err)
		}
		n := utf8.RuneCountInString(strings.TrimSpace(raw))
		pt := PageText{Page: i + 1, Text: raw, Chars: n, LowText: n < th.LowTextThreshold}
		layer.Pages = append(layer.Pages, pt)
		layer.TotalChars += n
		if pt.LowText {
			layer.LowTextPages++
		}
		if onPage != nil {
			onPage(i+1, total)
		}
	}
	return layer, nil
}

// Decision reasons, reported in logs.
const (
	ReasonForced       = "forced"
	ReasonLowTextPages = "low_text_pages"
	ReasonTooLittle    = "too_little_text"
	ReasonTextLayerOK  = "text_layer_ok"
)

// Decide reports whether the document must be OCR'd and why. The outcome
// depends only on layer, th and forceOCR.
func Decide(layer TextLayer, th Thresholds, forceOCR bool) (bool, string) {
	if forceOCR {
		return true, ReasonForced
	}
	if n := len(layer.Pages); n > 0 && float64(layer.LowTextPages)/float64(n) > th.LowTextPageRatio {
		return true, ReasonLowTextPages
	}
	if layer.TotalChars < th.MinTotalTextChars {
		return true, ReasonTooLittle
	}
	return false, ReasonTextLayerOK
}

// OCRPages lists the zero-based pages to OCR: the first maxPages, and never
// fewer than the first page.
func OCRPages(totalPages, maxPages int) []int {
	n := maxPages
	if n < 1 {
		n = 1
	}
	if totalPages > 0 && n > totalPages {
		n = totalPages
	}
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i
	}
	return pages
}

// OCRResult is the recognized text of one or more pages.
type OCRResult struct {
	Text       string
	Pages      []int   // one-based
	Confidence float64 // mean engine confidence, 0..100
}

// OCRProgress receives the running percentage across all pages and the
// one-based page being recognized.
type OCRProgress func(percent, page int)

// RecognizePages renders and recognizes pages in order. check runs before
// each page; a page whose recognition has started always completes.
func RecognizePages(ctx context.Context, rd RasterDocument, engine OCREngine, pages []int, scale float64, lang string, check func() error, onProgress OCRProgress) (OCRResult, error) {
	var res OCRResult
	var texts []string
	var confSum float64
	for k, p := range pages {
		if check != nil {
			if err := check(); err != nil {
				return res, err
			}
		}
		img, err := rd.Render(ctx, p, scale)
		if err != nil {
			return res, common.NewExtractionError(common.CodeRasterize,
				fmt.Sprintf("rasterizing page %d failed", p+1), err)
		}
		out, err := recognize(ctx, engine, img, lang, k, len(pages), p+1, onProgress)
		if err != nil {
			return res, err
		}
		if t := strings.TrimSpace(out.Text); t != "" {
			texts = append(texts, t)
		}
		confSum += out.Confidence
		res.Pages = append(res.Pages, p+1)
	}
	res.Text = strings.Join(texts, "\n\n")
	if len(res.Pages) > 0 {
		res.Confidence = math.Round(confSum/float64(len(res.Pages))*100) / 100
	}
	return res, nil
}

// RecognizeImage runs OCR on a single decoded image.
func RecognizeImage(ctx context.Context, engine OCREngine, img image.Image, lang string, onProgress OCRProgress) (OCRResult, error) {
	out, err := recognize(ctx, engine, img, lang, 0, 1, 1, onProgress)
	if err != nil {
		return OCRResult{}, err
	}
	return OCRResult{
		Text:       strings.TrimSpace(out.Text),
		Pages:      []int{1},
		Confidence: math.Round(out.Confidence*100) / 100,
	}, nil
}

func recognize(ctx context.Context, engine OCREngine, img image.Image, lang string, index, count, page int, onProgress OCRProgress) (OCRText, error) {
	report := func(pct int) {
		if onProgress == nil {
			return
		}
		pct = min(max(pct, 0), 100)
		onProgress((index*100+pct)/count, page)
	}
	report(0)
	out, err := engine.Recognize(ctx, img, lang, report)
	if err != nil {
		return OCRText{}, common.NewExtractionError(common.CodeOCRFailed,
			fmt.Sprintf("ocr failed on page %d", page), err)
	}
	report(100)
	return out, nil
}
