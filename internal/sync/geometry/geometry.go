// Package geometry converts region-map coordinates to on-screen
// coordinates using per-page affine viewport transforms.
//
// Region rectangles live in the compiler's native unit space, which is
// independent of zoom and resolution. Centralizing the affine math
// here keeps a single source of truth for "where on screen does source
// line N appear" — no call site re-derives the transform.
package geometry

// Affine is a 6-parameter affine matrix mapping region-map space
// (x, y) to screen space (A*x + C*y + E, B*x + D*y + F).
// It is supplied per rendered page at a chosen display scale and is
// never persisted.
type Affine struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Apply maps a point from region-map space to screen space.
func (t Affine) Apply(x, y float64) (float64, float64) {
	return t.A*x + t.C*y + t.E, t.B*x + t.D*y + t.F
}

// Rect is an axis-aligned rectangle in screen space.
// Width and Height are always non-negative.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Contains returns true if the given screen point falls inside the rect.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// TransformRect maps a region rectangle through the affine transform
// and returns the axis-aligned bounding box of the two transformed
// corners. Taking min/max of the corners keeps width and height
// non-negative even when the transform flips or rotates an axis.
func TransformRect(x, y, width, height float64, t Affine) Rect {
	x1, y1 := t.Apply(x, y)
	x2, y2 := t.Apply(x+width, y+height)

	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}

	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// PageFlip returns the transform for a page rendered at the given
// scale with the vertical axis flipped: region maps use a y-up origin
// at the bottom-left (PDF convention) while screens are y-down from
// the top-left. pageHeight is in native units.
func PageFlip(scale, pageHeight float64) Affine {
	return Affine{A: scale, D: -scale, F: scale * pageHeight}
}
