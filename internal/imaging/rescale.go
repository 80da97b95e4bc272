package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrEmptyImage is returned when an image has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Rescale draws img into a new opaque bitmap of exactly size scaled by the
// display scale. The source is stretched to fill the target; use Normalize
// when size may not match the aspect ratio of img.
// It returns nil when the target cannot be allocated.
func Rescale(img image.Image, size Size, scale float64) *image.RGBA {
	if img == nil || size.IsZero() {
		return nil
	}
	px := size.Pixels(scale)
	if px.X <= 0 || px.Y <= 0 {
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, px.X, px.Y))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// Normalize draws img onto a canvas of exactly size. It rescales when size
// keeps the aspect ratio of img and letterboxes with Fit otherwise, so frames
// are never distorted by the width clamp of VideoSafeSize.
func Normalize(img image.Image, size Size) *image.RGBA {
	if img == nil {
		return nil
	}
	if KeepsAspect(img.Bounds(), size) {
		return Rescale(img, size, 1)
	}
	return Fit(img, size)
}

// KeepsAspect reports whether size has the aspect ratio of src to within one
// Block in each dimension.
func KeepsAspect(src image.Rectangle, size Size) bool {
	if src.Empty() || size.IsZero() {
		return false
	}
	w, h := float64(src.Dx()), float64(src.Dy())
	wantW := w * float64(size.Height) / h
	wantH := h * float64(size.Width) / w
	return math.Abs(wantW-float64(size.Width)) < Block && math.Abs(wantH-float64(size.Height)) < Block
}

// Fit scales img to fit inside size while keeping its aspect ratio and centers
// it on a black canvas. It returns nil when the target cannot be allocated.
func Fit(img image.Image, size Size) *image.RGBA {
	if img == nil || size.IsZero() {
		return nil
	}
	src := img.Bounds()
	if src.Empty() {
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	aspect := min(
		float64(size.Width)/float64(src.Dx()),
		float64(size.Height)/float64(src.Dy()),
	)
	w := int(float64(src.Dx())*aspect + 0.5)
	h := int(float64(src.Dy())*aspect + 0.5)
	x := (size.Width - w) / 2
	y := (size.Height - h) / 2

	draw.CatmullRom.Scale(dst, image.Rect(x, y, x+w, y+h), img, src, draw.Over, nil)
	return dst
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, "", ErrEmptyImage
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG and returns a reader over the bytes.
func EncodePNG(img image.Image) (io.Reader, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return &buf, nil
}
