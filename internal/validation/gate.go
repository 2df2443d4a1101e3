// Package validation rejects unsupported, oversized or empty inputs before
// any expensive work is done on them.
package validation

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

type Gate struct {
	maxSize int64
	logger  *slog.Logger
}

// NewGate returns a gate enforcing maxSize; values <= 0 or above the hard
// limit fall back to constants.MaxFileSizeBytes.
func NewGate(maxSize int64, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if maxSize <= 0 || maxSize > constants.MaxFileSizeBytes {
		maxSize = constants.MaxFileSizeBytes
	}
	return &Gate{maxSize: maxSize, logger: logger}
}

// Validate applies the rules in order: empty input, size limit, zero length,
// MIME allow-list. The returned error is a non-recoverable
// *common.ProcessingError whenever IsValid is false.
func (g *Gate) Validate(in *entity.DocumentInput) (entity.ValidationResult, error) {
	if in == nil || in.Data == nil {
		return g.reject(in, common.CodeEmptyInput, "input is empty")
	}

	size := in.Size
	if n := int64(len(in.Data)); n > size {
		size = n
	}
	if size > g.maxSize {
		return g.reject(in, common.CodeFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d", size, g.maxSize))
	}
	if len(in.Data) == 0 {
		return g.reject(in, common.CodeZeroLength, "file has zero length")
	}

	mime := ResolveMime(in.MimeType, in.FileName, in.Data)
	if _, ok := constants.AllowedMimeTypes[mime]; !ok {
		return g.reject(in, common.CodeUnsupportedType, fmt.Sprintf("unsupported file type %q", mime))
	}

	return entity.ValidationResult{
		IsValid:   true,
		FileKind:  constants.KindForMime(mime),
		MimeType:  mime,
		SizeBytes: uint64(size),
	}, nil
}

func (g *Gate) reject(in *entity.DocumentInput, code, msg string) (entity.ValidationResult, error) {
	fileID := ""
	if in != nil {
		fileID = in.FileID
	}
	g.logger.Warn("validation.rejected", "file_id", fileID, "code", code, "reason", msg)
	return entity.ValidationResult{IsValid: false, Error: msg, ErrorCode: code}, common.NewValidationError(code, msg)
}

// ResolveMime normalizes the declared MIME type. A blank or generic
// declaration is resolved from the file extension, then by sniffing the
// content. An explicit declaration is never overridden.
func ResolveMime(declared, fileName string, data []byte) string {
	mime := constants.NormalizeMime(declared)
	if mime != "" && mime != constants.MimeOctetStream {
		return mime
	}
	if byExt := constants.MimeForExt(filepath.Ext(fileName)); byExt != "" {
		return byExt
	}
	if len(data) > 0 {
		return constants.NormalizeMime(mimetype.Detect(data).String())
	}
	return mime
}
