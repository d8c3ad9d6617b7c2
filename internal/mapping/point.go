package mapping

import (
	"github.com/chewxy/math32"

	"github.com/zeusync/proxyfield/internal/sensor"
)

// DepthSpacePoint is a location in the depth frame, in fractional pixels.
type DepthSpacePoint struct {
	X, Y float32
}

// Invalid marks a color pixel with no depth correspondence.
var Invalid = DepthSpacePoint{X: math32.Inf(-1), Y: math32.Inf(-1)}

func (p DepthSpacePoint) IsValid() bool {
	return !math32.IsInf(p.X, -1) && !math32.IsInf(p.Y, -1) && !math32.IsNaN(p.X) && !math32.IsNaN(p.Y)
}

// Pixel rounds p to the nearest depth pixel. ok is false for the sentinel and
// for points outside the depth frame, so callers never index with them.
func (p DepthSpacePoint) Pixel() (x, y int, ok bool) {
	if !p.IsValid() {
		return 0, 0, false
	}
	fx, fy := p.X+0.5, p.Y+0.5
	if fx < 0 || fy < 0 || fx >= sensor.DepthWidth || fy >= sensor.DepthHeight {
		return 0, 0, false
	}
	return int(fx), int(fy), true
}

// Index returns the depth buffer index of p.
func (p DepthSpacePoint) Index() (int, bool) {
	x, y, ok := p.Pixel()
	if !ok {
		return 0, false
	}
	return y*sensor.DepthWidth + x, true
}
