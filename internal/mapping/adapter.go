package mapping

import (
	"fmt"

	"github.com/zeusync/proxyfield/internal/sensor"
)

// Service maps every color pixel into depth space. Implementations write one
// point per color pixel into out and mark unmapped pixels with Invalid.
type Service interface {
	MapColorFrameToDepthSpace(depth []uint16, out []DepthSpacePoint) error
}

// Adapter guards a Service with the resolution agreement between depth and
// color streams.
type Adapter struct {
	svc Service
}

func NewAdapter(svc Service) *Adapter {
	return &Adapter{svc: svc}
}

// Map fills out with the depth-space location of each color pixel. It writes
// nothing but out.
func (a *Adapter) Map(depth []uint16, depthW, depthH, colorW, colorH int, out []DepthSpacePoint) error {
	if a == nil || a.svc == nil {
		return fmt.Errorf("%w: no mapping service", ErrMapperUnavailable)
	}
	if depthW != sensor.DepthWidth || depthH != sensor.DepthHeight {
		return fmt.Errorf("%w: %w: depth %dx%d, want %dx%d", ErrMapperUnavailable, ErrResolutionMismatch,
			depthW, depthH, sensor.DepthWidth, sensor.DepthHeight)
	}
	if colorW != sensor.ColorWidth || colorH != sensor.ColorHeight {
		return fmt.Errorf("%w: %w: color %dx%d, want %dx%d", ErrMapperUnavailable, ErrResolutionMismatch,
			colorW, colorH, sensor.ColorWidth, sensor.ColorHeight)
	}
	if len(depth) != depthW*depthH {
		return fmt.Errorf("%w: %w: depth buffer has %d samples", ErrMapperUnavailable, ErrResolutionMismatch, len(depth))
	}
	if len(out) != colorW*colorH {
		return fmt.Errorf("%w: %w: output has %d points", ErrMapperUnavailable, ErrResolutionMismatch, len(out))
	}
	if err := a.svc.MapColorFrameToDepthSpace(depth, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMapperUnavailable, err)
	}
	return nil
}
