package compositor

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"

	"github.com/zeusync/proxyfield/internal/sensor"
)

// Background is the image shown wherever no player is tracked. It always has
// the color frame resolution.
type Background struct {
	img *image.RGBA
}

func NewSolidBackground(c color.RGBA) *Background {
	img := image.NewRGBA(image.Rect(0, 0, sensor.ColorWidth, sensor.ColorHeight))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &Background{img: img}
}

// NewImageBackground fits img to the color frame.
func NewImageBackground(img image.Image) *Background {
	b := img.Bounds()
	if b.Min == (image.Point{}) && b.Dx() == sensor.ColorWidth && b.Dy() == sensor.ColorHeight {
		return &Background{img: clone.AsRGBA(img)}
	}
	return &Background{img: transform.Resize(img, sensor.ColorWidth, sensor.ColorHeight, transform.Linear)}
}

// LoadBackground reads a PNG or JPEG from path.
func LoadBackground(path string) (*Background, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackgroundLoad, path, err)
	}
	return NewImageBackground(img), nil
}

func (b *Background) Image() *image.RGBA {
	return b.img
}

var defaultFill = color.RGBA{B: 128, A: 255}
