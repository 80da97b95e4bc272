// Package imaging prepares still images for video encoding: it computes
// encoder-friendly frame sizes, rescales bitmaps and renders caption cards.
package imaging

import (
	"image"
	"math"
)

// Frame bounds applied by VideoSafeSize.
const (
	// MinVideoWidth is the smallest width VideoSafeSize returns.
	MinVideoWidth = 800
	// MaxVideoWidth is the upper width bound. 1400 is not a multiple of 16,
	// so the largest width actually produced is 1392.
	MaxVideoWidth = 1400
	// MaxVideoHeight is the largest height VideoSafeSize returns.
	MaxVideoHeight = 1200
	// Block is the macroblock size every dimension is quantized to.
	Block = 16
)

// Size is a frame size in points.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// IsZero reports whether either dimension is non-positive.
func (s Size) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Pixels returns the size multiplied by a display scale.
func (s Size) Pixels(scale float64) image.Point {
	if scale <= 0 {
		scale = 1
	}
	return image.Point{
		X: int(math.Round(float64(s.Width) * scale)),
		Y: int(math.Round(float64(s.Height) * scale)),
	}
}

// VideoSafeSize returns a frame size for an image of the given pixel size
// shown at the given display scale. Both dimensions are multiples of 16, the
// width lies in [800, 1400] and the height does not exceed 1200. The aspect
// ratio is kept except for very tall images, whose width is clamped up to 800
// after the height has been reduced; Normalize letterboxes those.
//
// The checks run in a fixed order: width too large, width too small, height
// too large. Non-positive input yields the zero Size.
func VideoSafeSize(width, height int, scale float64) Size {
	if width <= 0 || height <= 0 {
		return Size{}
	}
	if scale <= 0 {
		scale = 1
	}

	w := ceilBlock(float64(width) / scale)
	h := ceilBlock(float64(height) / scale)

	if w > MaxVideoWidth {
		r := MaxVideoWidth / w
		w = floorBlock(w * r)
		h = floorBlock(h * r)
	}

	if w < MinVideoWidth {
		r := MinVideoWidth / w
		w = ceilBlock(w * r)
		h = ceilBlock(h * r)
	}

	if h > MaxVideoHeight {
		r := MaxVideoHeight / h
		w = floorBlock(w * r)
		h = floorBlock(h * r)
	}

	// The height pass can shrink the width under the minimum.
	if w < MinVideoWidth {
		w = MinVideoWidth
	}
	if h < Block {
		h = Block
	}

	return Size{Width: int(w), Height: int(h)}
}

// ceilBlock rounds v away from zero to a multiple of Block.
func ceilBlock(v float64) float64 {
	return Block * math.Ceil(settle(v)/Block)
}

// floorBlock rounds v toward zero to a multiple of Block.
func floorBlock(v float64) float64 {
	return Block * math.Floor(settle(v)/Block)
}

// settle drops float noise such as 799.9999999 from ratio products so that
// exact multiples are not pushed across a block boundary.
func settle(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
