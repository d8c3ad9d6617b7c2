package sensor

import (
	"fmt"
	"image"
	"time"
)

const (
	DepthWidth  = 512
	DepthHeight = 424
	ColorWidth  = 1920
	ColorHeight = 1080

	// BodyIndexNone marks a depth pixel that belongs to no tracked player.
	BodyIndexNone uint8 = 0xFF
)

// Frame is one synchronized sensor snapshot. Buffers are row-major and must
// not be modified once the frame has been handed to the pipeline.
type Frame struct {
	Timestamp time.Time
	// Depth holds distances in millimetres, 0 meaning no reading.
	Depth     []uint16
	Color     *image.RGBA
	BodyIndex []uint8
}

// NewFrame allocates a frame with buffers at the sensor resolutions. The body
// index is cleared to BodyIndexNone.
func NewFrame(ts time.Time) *Frame {
	f := &Frame{
		Timestamp: ts,
		Depth:     make([]uint16, DepthWidth*DepthHeight),
		Color:     image.NewRGBA(image.Rect(0, 0, ColorWidth, ColorHeight)),
		BodyIndex: make([]uint8, DepthWidth*DepthHeight),
	}
	for i := range f.BodyIndex {
		f.BodyIndex[i] = BodyIndexNone
	}
	return f
}

// Validate reports whether every component of the frame was acquired at the
// agreed resolution.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrIncompleteFrame)
	}
	if len(f.Depth) != DepthWidth*DepthHeight {
		return fmt.Errorf("%w: depth has %d samples", ErrIncompleteFrame, len(f.Depth))
	}
	if len(f.BodyIndex) != DepthWidth*DepthHeight {
		return fmt.Errorf("%w: body index has %d samples", ErrIncompleteFrame, len(f.BodyIndex))
	}
	if f.Color == nil {
		return fmt.Errorf("%w: missing color", ErrIncompleteFrame)
	}
	if b := f.Color.Bounds(); b.Dx() != ColorWidth || b.Dy() != ColorHeight || b.Min != (image.Point{}) {
		return fmt.Errorf("%w: color bounds %v", ErrIncompleteFrame, b)
	}
	return nil
}

// DepthAt returns the depth sample at depth pixel (x, y) and whether the
// pixel is inside the frame.
func (f *Frame) DepthAt(x, y int) (uint16, bool) {
	if x < 0 || y < 0 || x >= DepthWidth || y >= DepthHeight {
		return 0, false
	}
	return f.Depth[y*DepthWidth+x], true
}
