package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

var (
	pdfMagic = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")
	pngMagic = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
)

func TestGateRulesInOrder(t *testing.T) {
	g := NewGate(1024, nil)

	tests := []struct {
		name string
		in   *entity.DocumentInput
		code string
	}{
		{"nil input", nil, common.CodeEmptyInput},
		{"nil data", &entity.DocumentInput{MimeType: constants.MimePDF}, common.CodeEmptyInput},
		{"declared size over limit", &entity.DocumentInput{MimeType: "text/plain", Data: []byte("x"), Size: 4096}, common.CodeFileTooLarge},
		{"actual size over limit", &entity.DocumentInput{MimeType: constants.MimePDF, Data: bytes.Repeat([]byte("a"), 2048)}, common.CodeFileTooLarge},
		{"zero length", &entity.DocumentInput{MimeType: constants.MimePDF, Data: []byte{}}, common.CodeZeroLength},
		{"unsupported mime", &entity.DocumentInput{MimeType: "text/plain", Data: []byte("hello")}, common.CodeUnsupportedType},
		{"gif not allowed", &entity.DocumentInput{MimeType: "image/gif", Data: []byte("GIF89a")}, common.CodeUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Validate(tt.in)
			require.Error(t, err)
			assert.False(t, res.IsValid)
			assert.Equal(t, tt.code, res.ErrorCode)
			assert.NotEmpty(t, res.Error)

			pe, ok := common.AsProcessingError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, pe.Code)
			assert.Equal(t, common.KindValidation, pe.Kind)
			assert.False(t, pe.Recoverable)
		})
	}
}

func TestGateAccepts(t *testing.T) {
	g := NewGate(0, nil)

	tests := []struct {
		name string
		in   entity.DocumentInput
		mime string
		kind constants.FileKind
	}{
		{"pdf", entity.DocumentInput{MimeType: "application/pdf", Data: pdfMagic}, constants.MimePDF, constants.FileKindPDF},
		{"pdf with params", entity.DocumentInput{MimeType: "Application/PDF; charset=binary", Data: pdfMagic}, constants.MimePDF, constants.FileKindPDF},
		{"jpeg", entity.DocumentInput{MimeType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}, constants.MimeJPEG, constants.FileKindImage},
		{"jpg alias", entity.DocumentInput{MimeType: "image/jpg", Data: []byte{0xff, 0xd8, 0xff}}, constants.MimeJPG, constants.FileKindImage},
		{"webp", entity.DocumentInput{MimeType: "image/webp", Data: []byte("RIFF")}, constants.MimeWEBP, constants.FileKindImage},
		{"blank mime, extension", entity.DocumentInput{FileName: "scan.PNG", Data: pngMagic}, constants.MimePNG, constants.FileKindImage},
		{"octet stream, sniffed", entity.DocumentInput{MimeType: "application/octet-stream", FileName: "blob", Data: pdfMagic}, constants.MimePDF, constants.FileKindPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Validate(&tt.in)
			require.NoError(t, err)
			assert.True(t, res.IsValid)
			assert.Equal(t, tt.mime, res.MimeType)
			assert.Equal(t, tt.kind, res.FileKind)
			assert.Equal(t, uint64(len(tt.in.Data)), res.SizeBytes)
		})
	}
}

func TestResolveMimeNeverOverridesDeclared(t *testing.T) {
	assert.Equal(t, "image/png", ResolveMime("image/png", "doc.pdf", pdfMagic))
	assert.Equal(t, constants.MimePDF, ResolveMime("", "", pdfMagic))
	assert.Equal(t, "", ResolveMime("", "", nil))
}
