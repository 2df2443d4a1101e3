package constants

import "strings"

// MaxFileSizeBytes is the hard upper bound accepted by the validation gate.
const MaxFileSizeBytes int64 = 25 * 1024 * 1024

// FileKind is the coarse document class used to pick an acquisition path.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

// Acquisition methods recorded on results.
const (
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodImageOCR = "image-ocr"
)

const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimeJPG  = "image/jpg"
	MimePNG  = "image/png"
	MimeWEBP = "image/webp"

	MimeOctetStream = "application/octet-stream"
)

// AllowedMimeTypes is the allow-list enforced by the validation gate.
var AllowedMimeTypes = map[string]struct{}{
	MimePDF:  {},
	MimeJPEG: {},
	MimeJPG:  {},
	MimePNG:  {},
	MimeWEBP: {},
}

// AllowedExtensions holds the default allowed file extensions for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
}

var extToMime = map[string]string{
	"pdf":  MimePDF,
	"jpg":  MimeJPEG,
	"jpeg": MimeJPEG,
	"png":  MimePNG,
	"webp": MimeWEBP,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MimeForExt maps a file extension to its MIME type, or "" when unknown.
func MimeForExt(ext string) string {
	return extToMime[NormalizeExt(ext)]
}

// NormalizeMime lowercases a MIME type and drops any parameters.
func NormalizeMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}

// KindForMime returns pdf iff the MIME type is pdf, image otherwise.
func KindForMime(mime string) FileKind {
	if NormalizeMime(mime) == MimePDF {
		return FileKindPDF
	}
	return FileKindImage
}
