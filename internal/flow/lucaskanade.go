package flow

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
	"github.com/zeusync/proxyfield/pkg/concurrent"
)

// Engine produces a displacement field from two consecutive frames.
type Engine interface {
	Compute(ctx context.Context, prev, cur *Gray) (*Field, error)
}

type Options struct {
	// Window is the half size of the square integration window.
	Window int
	// MinEigen is the smallest eigenvalue of the window structure tensor,
	// normalized by window area, for which a displacement is reported.
	MinEigen float32
	Workers  int
	// Ratio is recorded on produced fields, see Field.Scale.
	Ratio int
}

func DefaultOptions() Options {
	return Options{Window: 5, MinEigen: 1e-4, Workers: 4, Ratio: Ratio}
}

// LucasKanade is a dense single-level Lucas-Kanade solver. Window sums come
// from summed-area tables, so the cost per pixel is independent of Window.
type LucasKanade struct {
	opts   Options
	logger log.Log
}

var _ Engine = (*LucasKanade)(nil)

func NewLucasKanade(opts Options, logger log.Log) *LucasKanade {
	if opts.Window < 1 {
		opts.Window = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Ratio < 1 {
		opts.Ratio = Ratio
	}
	return &LucasKanade{
		opts:   opts,
		logger: logger.With(log.String("component", "flow")),
	}
}

// tensor planes, one summed-area table each
const (
	planeXX = iota
	planeYY
	planeXY
	planeXT
	planeYT
	planeCount
)

func (lk *LucasKanade) Compute(ctx context.Context, prev, cur *Gray) (*Field, error) {
	if prev == nil {
		return nil, ErrNoPreviousFrame
	}
	if cur == nil || cur.Width == 0 || cur.Height == 0 {
		return nil, ErrEmptyFrame
	}
	if prev.Width != cur.Width || prev.Height != cur.Height {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			prev.Width, prev.Height, cur.Width, cur.Height)
	}

	w, h := cur.Width, cur.Height
	sw := w + 1
	var sat [planeCount][]float64
	for i := range sat {
		sat[i] = make([]float64, sw*(h+1))
	}

	// per-pixel structure tensor terms, stored at the (x+1, y+1) SAT slot
	err := concurrent.ForEachBand(ctx, h, lk.opts.Workers, func(_ context.Context, b concurrent.Band) error {
		for y := b.Start; y < b.End; y++ {
			for x := 0; x < w; x++ {
				ix := 0.25 * (prev.clamped(x+1, y) - prev.clamped(x-1, y) + cur.clamped(x+1, y) - cur.clamped(x-1, y))
				iy := 0.25 * (prev.clamped(x, y+1) - prev.clamped(x, y-1) + cur.clamped(x, y+1) - cur.clamped(x, y-1))
				it := cur.At(x, y) - prev.At(x, y)
				j := (y+1)*sw + x + 1
				sat[planeXX][j] = float64(ix * ix)
				sat[planeYY][j] = float64(iy * iy)
				sat[planeXY][j] = float64(ix * iy)
				sat[planeXT][j] = float64(ix * it)
				sat[planeYT][j] = float64(iy * it)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// rows are independent for the horizontal prefix pass
	err = concurrent.ForEachBand(ctx, h, lk.opts.Workers, func(_ context.Context, b concurrent.Band) error {
		for p := range sat {
			plane := sat[p]
			for y := b.Start + 1; y <= b.End; y++ {
				row := plane[y*sw : (y+1)*sw]
				for x := 1; x < sw; x++ {
					row[x] += row[x-1]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// and columns for the vertical one
	err = concurrent.ForEachBand(ctx, sw, lk.opts.Workers, func(_ context.Context, b concurrent.Band) error {
		for p := range sat {
			plane := sat[p]
			for y := 1; y <= h; y++ {
				for x := b.Start; x < b.End; x++ {
					plane[y*sw+x] += plane[(y-1)*sw+x]
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	field := NewField(w, h, lk.opts.Ratio)
	r := lk.opts.Window
	err = concurrent.ForEachBand(ctx, h, lk.opts.Workers, func(_ context.Context, b concurrent.Band) error {
		for y := b.Start; y < b.End; y++ {
			y0, y1 := max(y-r, 0), min(y+r+1, h)
			for x := 0; x < w; x++ {
				x0, x1 := max(x-r, 0), min(x+r+1, w)
				area := float32((x1 - x0) * (y1 - y0))
				var s [planeCount]float32
				for p := range sat {
					plane := sat[p]
					sum := plane[y1*sw+x1] - plane[y0*sw+x1] - plane[y1*sw+x0] + plane[y0*sw+x0]
					s[p] = float32(sum) / area
				}
				dx, dy := solve(s, lk.opts.MinEigen)
				field.Set(x, y, dx, dy)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lk.logger.Debug("flow computed", log.Int("width", w), log.Int("height", h))
	return field, nil
}

// solve resolves [xx xy; xy yy] [u v] = -[xt yt]. Windows whose smaller
// eigenvalue is under minEigen carry no reliable motion and yield zero.
func solve(s [planeCount]float32, minEigen float32) (float32, float32) {
	xx, yy, xy := s[planeXX], s[planeYY], s[planeXY]
	half := (xx - yy) / 2
	lambda := (xx+yy)/2 - math32.Sqrt(half*half+xy*xy)
	if lambda < minEigen || lambda <= 0 {
		return 0, 0
	}
	det := xx*yy - xy*xy
	if math32.Abs(det) < 1e-12 {
		return 0, 0
	}
	xt, yt := s[planeXT], s[planeYT]
	u := (-yy*xt + xy*yt) / det
	v := (xy*xt - xx*yt) / det
	return u, v
}
