package sensor

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	syntheticPlayerDepth     = 1200
	syntheticBackgroundDepth = 2600
	syntheticPeriodTicks     = 180
	syntheticTexturePeriod   = 48.0
)

// Synthetic renders a deterministic scene: one player silhouette swaying left
// and right in front of a far wall, over a textured color frame that pans with
// the player. It needs no hardware and backs demos and tests.
type Synthetic struct {
	mu       sync.Mutex
	start    time.Time
	interval time.Duration
	tick     int
}

func NewSynthetic(start time.Time, interval time.Duration) *Synthetic {
	if interval <= 0 {
		interval = time.Second / 30
	}
	return &Synthetic{start: start, interval: interval}
}

// Next renders the following frame in the sequence.
func (s *Synthetic) Next() *Frame {
	s.mu.Lock()
	tick := s.tick
	s.tick++
	s.mu.Unlock()
	return RenderSynthetic(s.start.Add(time.Duration(tick)*s.interval), tick)
}

// AcquireFrame always has a frame ready.
func (s *Synthetic) AcquireFrame() (*Frame, error) {
	return s.Next(), nil
}

// Run pushes a new frame into sink every interval until ctx is done.
func (s *Synthetic) Run(ctx context.Context, sink *Latest) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sink.Close()
			return nil
		case <-ticker.C:
			if !sink.Push(s.Next()) {
				return ErrSourceClosed
			}
		}
	}
}

// PlayerCenter returns the depth-space centre of the silhouette at tick.
func PlayerCenter(tick int) (float64, float64) {
	phase := 2 * math.Pi * float64(tick%syntheticPeriodTicks) / syntheticPeriodTicks
	return DepthWidth/2 + 60*math.Sin(phase), DepthHeight / 2
}

// RenderSynthetic renders the frame for a given tick.
func RenderSynthetic(ts time.Time, tick int) *Frame {
	f := NewFrame(ts)
	cx, cy := PlayerCenter(tick)
	const rx, ry = 45.0, 120.0

	for y := 0; y < DepthHeight; y++ {
		row := y * DepthWidth
		ny := (float64(y) - cy) / ry
		for x := 0; x < DepthWidth; x++ {
			nx := (float64(x) - cx) / rx
			if nx*nx+ny*ny <= 1 {
				// slight bulge towards the camera at the centre
				f.Depth[row+x] = uint16(syntheticPlayerDepth - 40*(1-nx*nx))
				f.BodyIndex[row+x] = 0
				continue
			}
			f.Depth[row+x] = syntheticBackgroundDepth
		}
	}

	shift := 3 * (cx - DepthWidth/2)
	cols := make([]uint8, ColorWidth)
	for x := range cols {
		cols[x] = uint8(128 + 100*math.Sin(2*math.Pi*(float64(x)-shift)/syntheticTexturePeriod))
	}
	rows := make([]uint8, ColorHeight)
	for y := range rows {
		rows[y] = uint8(128 + 100*math.Sin(2*math.Pi*float64(y)/syntheticTexturePeriod))
	}
	pix := f.Color.Pix
	for y := 0; y < ColorHeight; y++ {
		off := y * f.Color.Stride
		g := rows[y]
		for x := 0; x < ColorWidth; x++ {
			r := cols[x]
			i := off + x*4
			pix[i] = r
			pix[i+1] = g
			pix[i+2] = uint8((uint16(r) + uint16(g)) / 2)
			pix[i+3] = 0xFF
		}
	}
	return f
}
