package flow

import (
	"image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/transform"
)

// Gray is a single-channel frame with intensities in [0, 1].
type Gray struct {
	Width, Height int
	Pix           []float32
}

func NewGray(width, height int) *Gray {
	return &Gray{Width: width, Height: height, Pix: make([]float32, width*height)}
}

func (g *Gray) At(x, y int) float32 {
	return g.Pix[y*g.Width+x]
}

// clamped reads with edge replication.
func (g *Gray) clamped(x, y int) float32 {
	if x < 0 {
		x = 0
	} else if x >= g.Width {
		x = g.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= g.Height {
		y = g.Height - 1
	}
	return g.Pix[y*g.Width+x]
}

// NewGrayFromImage downsamples img to width x height, optionally smooths it
// with a gaussian of blurRadius, and converts it to luminance.
func NewGrayFromImage(img image.Image, width, height int, blurRadius float64) *Gray {
	small := transform.Resize(img, width, height, transform.Linear)
	if blurRadius > 0 {
		small = blur.Gaussian(small, blurRadius)
	}

	g := NewGray(width, height)
	for y := 0; y < height; y++ {
		off := y * small.Stride
		row := g.Pix[y*width : (y+1)*width]
		for x := range row {
			p := small.Pix[off+x*4 : off+x*4+3]
			row[x] = (0.299*float32(p[0]) + 0.587*float32(p[1]) + 0.114*float32(p[2])) / 255
		}
	}
	return g
}
