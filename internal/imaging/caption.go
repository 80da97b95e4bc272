package imaging

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// ErrEmptyCaption is returned when the caption text is blank.
var ErrEmptyCaption = errors.New("caption text is empty")

// CaptionStyle controls how a caption card is drawn.
type CaptionStyle struct {
	// FontPath is an optional TrueType font. Go Regular is used when it is
	// empty or cannot be loaded.
	FontPath string
	// FontSize is the size in points for TrueType fonts.
	FontSize float64
	// Margin is the distance between the frame band and the bottom edge.
	Margin float64
}

// DefaultCaptionStyle returns the style used when none is configured.
func DefaultCaptionStyle() CaptionStyle {
	return CaptionStyle{
		FontSize: 48,
		Margin:   40,
	}
}

// Caption renders text on a transparent canvas of the given size: white
// lettering with a dark shadow, inside a translucent frame anchored at the
// bottom center. The result is meant to be overlaid on video frames.
func Caption(text string, size Size, style CaptionStyle) (image.Image, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyCaption
	}
	if size.IsZero() {
		return nil, fmt.Errorf("caption canvas %dx%d: %w", size.Width, size.Height, ErrEmptyImage)
	}
	if style.FontSize <= 0 {
		style.FontSize = DefaultCaptionStyle().FontSize
	}

	dc := gg.NewContext(size.Width, size.Height)
	dc.SetFontFace(loadFace(style))

	w, h := dc.MeasureString(text)
	padX, padY := h, h/2
	cx := float64(size.Width) / 2
	cy := float64(size.Height) - style.Margin - h/2 - padY

	dc.SetRGBA(0, 0, 0, 0.45)
	dc.DrawRoundedRectangle(cx-w/2-padX, cy-h/2-padY, w+2*padX, h+2*padY, padY)
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	for _, off := range [][2]float64{{2, 2}, {-2, -2}, {2, -2}, {-2, 2}} {
		dc.DrawStringAnchored(text, cx+off[0], cy+off[1], 0.5, 0.5)
	}
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)

	return dc.Image(), nil
}

// regularFont is the embedded Go Regular face, parsed once.
var regularFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

// LoadFont reads and parses a TrueType font file.
func LoadFont(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path) // #nosec G304 - font path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", path, err)
	}
	return f, nil
}

// loadFace returns the configured font at style.FontSize, then Go Regular,
// and the fixed 7x13 bitmap face only if neither parses.
func loadFace(style CaptionStyle) font.Face {
	if style.FontPath != "" {
		if f, err := LoadFont(style.FontPath); err == nil {
			return truetype.NewFace(f, &truetype.Options{Size: style.FontSize})
		}
	}
	if f, err := regularFont(); err == nil {
		return truetype.NewFace(f, &truetype.Options{Size: style.FontSize})
	}
	return basicfont.Face7x13
}
