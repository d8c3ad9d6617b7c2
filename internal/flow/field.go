package flow

const (
	Width  = 640
	Height = 360
	// Ratio is the color to flow downsample factor on both axes.
	Ratio = 3
)

// Field is a dense displacement field in flow-resolution pixels.
type Field struct {
	Width, Height int
	DX, DY        []float32
	ratio         int
}

func NewField(width, height, ratio int) *Field {
	if ratio < 1 {
		ratio = 1
	}
	return &Field{
		Width:  width,
		Height: height,
		DX:     make([]float32, width*height),
		DY:     make([]float32, width*height),
		ratio:  ratio,
	}
}

// At returns the displacement at flow cell (x, y); ok is false outside the field.
func (f *Field) At(x, y int) (dx, dy float32, ok bool) {
	if f == nil || x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return 0, 0, false
	}
	i := y*f.Width + x
	return f.DX[i], f.DY[i], true
}

// Set stores a displacement; out of range cells are ignored.
func (f *Field) Set(x, y int, dx, dy float32) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := y*f.Width + x
	f.DX[i], f.DY[i] = dx, dy
}

// Scale is the number of color pixels per flow cell along each axis.
func (f *Field) Scale() int {
	return f.ratio
}
