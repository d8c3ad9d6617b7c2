package render

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/zeusync/proxyfield/internal/core/observability/log"
)

// Viewport is the world rectangle projected onto the terminal, in world units.
type Viewport struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// DefaultViewport covers the color frame under the pixel to world transform.
func DefaultViewport() Viewport {
	return Viewport{MinX: -19.2, MaxX: 19.2, MinY: 0, MaxY: 21.6}
}

// Terminal draws a front view of the scene into a character grid: spheres as
// dots, boxes as filled blocks, the ground as the bottom line.
type Terminal struct {
	mu       sync.Mutex
	screen   tcell.Screen
	viewport Viewport
	logger   log.Log
	closed   bool
}

var _ Sink = (*Terminal)(nil)

// NewTerminal initializes screen and takes ownership of it.
func NewTerminal(screen tcell.Screen, viewport Viewport, logger log.Log) (*Terminal, error) {
	if screen == nil {
		return nil, ErrNoScreen
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoScreen, err)
	}
	screen.HideCursor()
	return &Terminal{
		screen:   screen,
		viewport: viewport,
		logger:   logger.With(log.String("component", "terminal")),
	}, nil
}

// cell maps a world point onto an unclamped cell of the drawing area.
func (t *Terminal) cell(x, y float64, cols, drawRows int) (int, int) {
	vp := t.viewport
	col := int(math.Floor((x - vp.MinX) / (vp.MaxX - vp.MinX) * float64(cols)))
	row := drawRows - 1 - int(math.Floor((y-vp.MinY)/(vp.MaxY-vp.MinY)*float64(drawRows)))
	return col, row
}

// project maps a world point onto a cell; ok is false outside the drawing
// area. The last screen row is reserved for the status line.
func (t *Terminal) project(x, y float64, cols, rows int) (int, int, bool) {
	col, row := t.cell(x, y, cols, rows-1)
	if col < 0 || col >= cols || row < 0 || row >= rows-1 {
		return 0, 0, false
	}
	return col, row, true
}

func (t *Terminal) Render(_ context.Context, scene *Scene) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrNoScreen
	}

	cols, rows := t.screen.Size()
	if cols < 1 || rows < 2 {
		return nil
	}
	t.screen.Clear()

	for _, p := range scene.Primitives {
		style := tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(p.Color[0]), int32(p.Color[1]), int32(p.Color[2])))
		switch p.Kind {
		case "plane":
			for x := 0; x < cols; x++ {
				t.screen.SetContent(x, rows-2, '_', nil, style)
			}
		case "box":
			t.fillBox(p, cols, rows, style)
		default:
			if col, row, ok := t.project(p.Position[0], p.Position[1], cols, rows); ok {
				t.screen.SetContent(col, row, '•', nil, style)
			}
		}
	}

	status := fmt.Sprintf(" frame %d  particles %d  +%d -%d  dt %.3fs",
		scene.Frame, scene.Stats.Particles, scene.Stats.Spawned, scene.Stats.Removed, scene.Stats.Dt)
	for i, r := range []rune(status) {
		if i >= cols {
			break
		}
		t.screen.SetContent(i, rows-1, r, nil, tcell.StyleDefault.Reverse(true))
	}
	t.screen.Show()
	return nil
}

func (t *Terminal) fillBox(p Primitive, cols, rows int, style tcell.Style) {
	drawRows := rows - 1
	c0, r1 := t.cell(p.Position[0]-p.Size[0], p.Position[1]-p.Size[1], cols, drawRows)
	c1, r0 := t.cell(p.Position[0]+p.Size[0], p.Position[1]+p.Size[1], cols, drawRows)
	c0, c1 = max(c0, 0), min(c1, cols-1)
	r0, r1 = max(r0, 0), min(r1, drawRows-1)
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			t.screen.SetContent(col, row, '█', nil, style)
		}
	}
}

// WatchKeys blocks reading input and calls quit on Esc, Ctrl-C or 'q'.
// It returns when the screen is closed.
func (t *Terminal) WatchKeys(quit func()) {
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				quit()
				return
			}
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

// Close restores the terminal.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.screen.Fini()
}
