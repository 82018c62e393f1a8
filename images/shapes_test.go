package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{100, 0, 200, 100},
			expected: 0.0,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // 2500 / 17500
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25,
		},
		{
			name:     "Sub-pixel boxes",
			r1:       Rect{0.5, 0.5, 1.5, 1.5},
			r2:       Rect{1.0, 0.5, 2.0, 1.5},
			expected: 1.0 / 3.0,
		},
		{
			name:     "Zero-area boxes",
			r1:       Rect{10, 10, 10, 10},
			r2:       Rect{10, 10, 10, 10},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, 1e-4)

			// IoU(A, B) should equal IoU(B, A).
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), 1e-6, "IoU should be symmetric")
		})
	}
}

// TestIoU_Identity checks that any valid box overlaps itself perfectly.
func TestIoU_Identity(t *testing.T) {
	boxes := []Rect{
		{0, 0, 1, 1},
		{10, 10, 50, 50},
		{12.25, 3.5, 48.75, 97.125},
		{-20, -20, 20, 20},
		{0, 0, 4096, 2160},
	}

	for _, b := range boxes {
		assert.Equal(t, float32(1), CalculateIoU(b, b), "box %s", b)
	}
}

// TestIoU_DetectionScenario covers the ground truth / detection pair used by the evaluator tests.
func TestIoU_DetectionScenario(t *testing.T) {
	truth := Rect{10, 10, 50, 50}
	det := Rect{12, 12, 48, 48}

	// 36*36 / 40*40
	iou := CalculateIoU(truth, det)
	assert.InDelta(t, 0.81, iou, 1e-5)
	assert.GreaterOrEqual(t, iou, float32(0.5))
}

func TestCenterBoxToCorner(t *testing.T) {
	tests := []struct {
		name     string
		box      CenterBox
		expected Rect
	}{
		{
			name:     "unit box at origin",
			box:      CenterBox{CX: 0, CY: 0, W: 2, H: 2},
			expected: Rect{-1, -1, 1, 1},
		},
		{
			name:     "pixel box",
			box:      CenterBox{CX: 30, CY: 30, W: 40, H: 40},
			expected: Rect{10, 10, 50, 50},
		},
		{
			name:     "non-square normalized box",
			box:      CenterBox{CX: 0.5, CY: 0.25, W: 0.5, H: 0.25},
			expected: Rect{0.25, 0.125, 0.75, 0.375},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.box.ToCorner()
			assert.Equal(t, tt.expected, got)
			assert.GreaterOrEqual(t, got.X2, got.X1)
			assert.GreaterOrEqual(t, got.Y2, got.Y1)

			back := got.ToCenter()
			assert.InDelta(t, tt.box.CX, back.CX, 1e-5)
			assert.InDelta(t, tt.box.CY, back.CY, 1e-5)
			assert.InDelta(t, tt.box.W, back.W, 1e-5)
			assert.InDelta(t, tt.box.H, back.H, 1e-5)
		})
	}
}

func TestToCornerAll(t *testing.T) {
	assert.Nil(t, ToCornerAll(nil))

	boxes := []CenterBox{
		{CX: 30, CY: 30, W: 40, H: 40},
		{CX: 0.5, CY: 0.5, W: 1, H: 1},
	}
	got := ToCornerAll(boxes)
	assert.Equal(t, []Rect{{10, 10, 50, 50}, {0, 0, 1, 1}}, got)
}

func TestScale(t *testing.T) {
	normalized := CenterBox{CX: 0.5, CY: 0.5, W: 0.25, H: 0.5}
	assert.Equal(t, CenterBox{CX: 208, CY: 208, W: 104, H: 208}, normalized.Scale(416))
	assert.Equal(t, Rect{0, 0, 832, 416}, Rect{0, 0, 2, 1}.Scale(416))
	assert.Equal(t, float32(40*40), Rect{10, 10, 50, 50}.Area())
}
