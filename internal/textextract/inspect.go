package textextract

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFInfo is what the structural parse learns about a PDF before any text
// is read.
type PDFInfo struct {
	PageCount int
	Version   string
	Encrypted bool
}

// InspectPDF parses the document structure with pdfcpu in relaxed mode. An
// error here means the file is not a usable PDF.
func InspectPDF(data []byte) (info PDFInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inspect pdf: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return PDFInfo{}, fmt.Errorf("inspect pdf: %w", err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return PDFInfo{}, fmt.Errorf("inspect pdf: page count: %w", err)
	}
	info = PDFInfo{
		PageCount: ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}
	if ctx.HeaderVersion != nil {
		info.Version = ctx.HeaderVersion.String()
	}
	return info, nil
}
