package ocr

import (
	"image"

	"golang.org/x/image/draw"
)

// upscale enlarges images narrower than minWidth so small receipts and
// thumbnails reach a resolution tesseract reads reliably. minWidth <= 0
// disables it.
func upscale(img image.Image, minWidth int) image.Image {
	b := img.Bounds()
	if minWidth <= 0 || b.Dx() == 0 || b.Dx() >= minWidth {
		return img
	}
	h := b.Dy() * minWidth / b.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, minWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
