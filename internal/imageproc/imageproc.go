// Package imageproc derives the two rasters stored or scanned for every
// captured document image: a bounded-size upload copy and a greyscale,
// contrast-stretched copy tuned for text recognition.
package imageproc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const (
	uploadMaxEdge = 2000
	ocrTargetEdge = 1400

	uploadJPEGQuality = 92
	ocrJPEGQuality    = 95

	contrastMidpoint = 128
	contrastSlope    = 1.5
)

// Derived holds the two independently produced copies of one source image.
type Derived struct {
	Upload            []byte
	UploadContentType string
	OCR               []byte
}

// Derive produces both copies concurrently. The two paths decode
// independently so a partial decode failure on one never taints the other.
func Derive(ctx context.Context, src []byte) (Derived, error) {
	var d Derived
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Upload, d.UploadContentType = ForUpload(src)
		return nil
	})
	g.Go(func() error {
		d.OCR = ForOCR(src)
		return nil
	})
	if err := g.Wait(); err != nil {
		return Derived{}, err
	}
	return d, nil
}

// ForUpload bounds the stored copy to a 2000px longest edge. Images already
// within the ceiling pass through byte-identical; anything undecodable also
// passes through untouched so the original evidence is never lost. The
// returned content type is empty on passthrough, leaving the caller to sniff
// the original bytes.
func ForUpload(src []byte) ([]byte, string) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return src, ""
	}
	b := img.Bounds()
	if longestEdge(b) <= uploadMaxEdge {
		return src, ""
	}

	dst := scaleToEdge(img, uploadMaxEdge)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: uploadJPEGQuality}); err != nil {
		return src, ""
	}
	return buf.Bytes(), "image/jpeg"
}

// ForOCR prepares the recognition copy: upscale small captures to a 1400px
// longest edge (never downscale), collapse to luminance greyscale, and
// stretch contrast around the midpoint. Undecodable input passes through so
// the engine can still attempt it.
func ForOCR(src []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return src
	}
	if longestEdge(img.Bounds()) < ocrTargetEdge {
		img = scaleToEdge(img, ocrTargetEdge)
	}

	grey := toContrastedGray(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, grey, &jpeg.Options{Quality: ocrJPEGQuality}); err != nil {
		return src
	}
	return buf.Bytes()
}

// SniffContentType resolves the MIME type to record for a stored copy,
// falling back to detection on the bytes when the derivation was a
// passthrough.
func SniffContentType(data []byte, derived string) string {
	if derived != "" {
		return derived
	}
	return http.DetectContentType(data)
}

func longestEdge(b image.Rectangle) int {
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}

// scaleToEdge resizes preserving aspect ratio so the longest edge equals
// edge. Catmull-Rom keeps glyph edges crisp enough for recognition.
func scaleToEdge(img image.Image, edge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= h {
		h = h * edge / w
		w = edge
	} else {
		w = w * edge / h
		h = edge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// toContrastedGray converts to ITU-R 601 luminance and applies a linear
// contrast stretch: out = mid + slope*(in - mid), clamped to [0, 255].
func toContrastedGray(img image.Image) *image.Gray {
	b := img.Bounds()
	grey := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
			v := contrastMidpoint + contrastSlope*(lum-contrastMidpoint)
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			grey.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: uint8(v)})
		}
	}
	return grey
}
