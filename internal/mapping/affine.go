package mapping

import (
	"math"

	"github.com/zeusync/proxyfield/internal/sensor"
)

// Nominal fields of view of the color and depth cameras, in degrees.
const (
	ColorFOVX = 84.1
	ColorFOVY = 53.8
	DepthFOVX = 70.6
	DepthFOVY = 60.0
)

// Affine approximates the color to depth registration of two co-located
// pinhole cameras: a per-axis scale from the focal length ratio plus a fixed
// offset in depth pixels. Parallax between the lenses is folded into the offset.
type Affine struct {
	cols []float32
	rows []float32
}

func NewAffine(offsetX, offsetY float64) *Affine {
	sx := focal(sensor.DepthWidth, DepthFOVX) / focal(sensor.ColorWidth, ColorFOVX)
	sy := focal(sensor.DepthHeight, DepthFOVY) / focal(sensor.ColorHeight, ColorFOVY)

	a := &Affine{
		cols: make([]float32, sensor.ColorWidth),
		rows: make([]float32, sensor.ColorHeight),
	}
	for x := range a.cols {
		a.cols[x] = float32((float64(x)-sensor.ColorWidth/2)*sx + sensor.DepthWidth/2 + offsetX)
	}
	for y := range a.rows {
		a.rows[y] = float32((float64(y)-sensor.ColorHeight/2)*sy + sensor.DepthHeight/2 + offsetY)
	}
	return a
}

func focal(size int, fovDeg float64) float64 {
	return float64(size) / 2 / math.Tan(fovDeg*math.Pi/360)
}

// MapColorFrameToDepthSpace marks pixels invalid when they land outside the
// depth frame or on a sample without a reading.
func (a *Affine) MapColorFrameToDepthSpace(depth []uint16, out []DepthSpacePoint) error {
	for cy, dy := range a.rows {
		row := out[cy*sensor.ColorWidth : (cy+1)*sensor.ColorWidth]
		for cx, dx := range a.cols {
			p := DepthSpacePoint{X: dx, Y: dy}
			i, ok := p.Index()
			if !ok || depth[i] == 0 {
				row[cx] = Invalid
				continue
			}
			row[cx] = p
		}
	}
	return nil
}
