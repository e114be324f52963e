package geometry

import (
	"math"
	"testing"
)

func TestIdentityApply(t *testing.T) {
	id := Identity()
	x, y := id.Apply(3.5, -2)
	if x != 3.5 || y != -2 {
		t.Errorf("Identity().Apply(3.5, -2) = (%v, %v)", x, y)
	}
}

func TestTransformRect(t *testing.T) {
	tests := []struct {
		name       string
		tf         Affine
		x, y, w, h float64
		want       Rect
	}{
		{
			name: "identity",
			tf:   Identity(),
			x:    10, y: 20, w: 30, h: 40,
			want: Rect{X: 10, Y: 20, Width: 30, Height: 40},
		},
		{
			name: "uniform scale",
			tf:   Affine{A: 2, D: 2},
			x:    10, y: 20, w: 30, h: 40,
			want: Rect{X: 20, Y: 40, Width: 60, Height: 80},
		},
		{
			name: "translate",
			tf:   Affine{A: 1, D: 1, E: 5, F: -5},
			x:    0, y: 0, w: 10, h: 10,
			want: Rect{X: 5, Y: -5, Width: 10, Height: 10},
		},
		{
			name: "y flip keeps height positive",
			tf:   Affine{A: 1, D: -1, F: 100},
			x:    10, y: 20, w: 30, h: 40,
			want: Rect{X: 10, Y: 40, Width: 30, Height: 40},
		},
		{
			name: "both axes flipped",
			tf:   Affine{A: -1, D: -1},
			x:    10, y: 20, w: 30, h: 40,
			want: Rect{X: -40, Y: -60, Width: 30, Height: 40},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TransformRect(tt.x, tt.y, tt.w, tt.h, tt.tf)
			if got != tt.want {
				t.Errorf("TransformRect = %+v, want %+v", got, tt.want)
			}
			if got.Width < 0 || got.Height < 0 {
				t.Errorf("negative dimensions: %+v", got)
			}
		})
	}
}

func TestTransformRectRotation(t *testing.T) {
	// A 90-degree rotation must still produce non-negative dimensions.
	s, c := math.Sin(math.Pi/2), math.Cos(math.Pi/2)
	rot := Affine{A: c, B: s, C: -s, D: c}

	got := TransformRect(10, 20, 30, 40, rot)
	if got.Width < 0 || got.Height < 0 {
		t.Errorf("rotated rect has negative dimensions: %+v", got)
	}
}

func TestPageFlip(t *testing.T) {
	// A rect at the top of a 792-unit page (y-up) must land at the top
	// of the screen (y-down).
	tf := PageFlip(1.5, 792)

	got := TransformRect(72, 780, 100, 12, tf)
	want := Rect{X: 108, Y: 0, Width: 150, Height: 18}

	const eps = 1e-9
	if math.Abs(got.X-want.X) > eps || math.Abs(got.Y-want.Y) > eps ||
		math.Abs(got.Width-want.Width) > eps || math.Abs(got.Height-want.Height) > eps {
		t.Errorf("PageFlip rect = %+v, want %+v", got, want)
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{X: 10, Y: 10, Width: 20, Height: 20}
	if !r.Contains(15, 15) {
		t.Error("Contains(15, 15) = false, want true")
	}
	if r.Contains(31, 15) {
		t.Error("Contains(31, 15) = true, want false")
	}
}
