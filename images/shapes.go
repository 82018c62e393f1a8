// Package images - Box geometry and image containers used by the evaluator.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Rect is a bounding box in corner form (pixel units).
//
// X2 >= X1 and Y2 >= Y1 is a caller contract; degenerate boxes are not repaired.
type Rect struct {
	X1 float32 `json:"x1" yaml:"x1"`
	Y1 float32 `json:"y1" yaml:"y1"`
	X2 float32 `json:"x2" yaml:"x2"`
	Y2 float32 `json:"y2" yaml:"y2"`
}

// CenterBox is a bounding box in center form: center point plus width and height.
type CenterBox struct {
	CX float32 `json:"cx" yaml:"cx"`
	CY float32 `json:"cy" yaml:"cy"`
	W  float32 `json:"w" yaml:"w"`
	H  float32 `json:"h" yaml:"h"`
}

// ToCorner converts a center-form box to corner form.
//
// Returns:
//   - Rect: x1 = cx - w/2, y1 = cy - h/2, x2 = cx + w/2, y2 = cy + h/2.
func (b CenterBox) ToCorner() Rect {
	hw, hh := b.W/2, b.H/2
	return Rect{
		X1: b.CX - hw,
		Y1: b.CY - hh,
		X2: b.CX + hw,
		Y2: b.CY + hh,
	}
}

// Scale multiplies every component of the box by f.
func (b CenterBox) Scale(f float32) CenterBox {
	return CenterBox{CX: b.CX * f, CY: b.CY * f, W: b.W * f, H: b.H * f}
}

// ToCornerAll converts a slice of center-form boxes to corner form.
//
// Arguments:
//   - boxes: The center-form boxes to convert.
//
// Returns:
//   - []Rect: One corner-form box per input, in the same order. Nil for an empty input.
func ToCornerAll(boxes []CenterBox) []Rect {
	if len(boxes) == 0 {
		return nil
	}
	out := make([]Rect, len(boxes))
	for i, b := range boxes {
		out[i] = b.ToCorner()
	}
	return out
}

// ToCenter converts a corner-form box back to center form.
func (r Rect) ToCenter() CenterBox {
	w, h := r.X2-r.X1, r.Y2-r.Y1
	return CenterBox{CX: r.X1 + w/2, CY: r.Y1 + h/2, W: w, H: h}
}

// Width of the box.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height of the box.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area of the box in square pixels.
func (r Rect) Area() float32 { return r.Width() * r.Height() }

// Scale multiplies every coordinate by f.
func (r Rect) Scale(f float32) Rect {
	return Rect{X1: r.X1 * f, Y1: r.Y1 * f, X2: r.X2 * f, Y2: r.Y2 * f}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU measures the overlap of two corner-form boxes as
// Intersection over Union.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the rectangles are identical.
//	- A value of 0.0 means the rectangles don't overlap at all.
//
// The intersection's top-left corner is the maximum of both top-left corners and its
// bottom-right corner the minimum of both bottom-right corners. A non-positive width or
// height means the boxes are disjoint. The union follows inclusion-exclusion:
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// A zero union area yields 0 rather than a division by zero.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	// Rounding can push identical boxes a hair past 1.
	return math32.Min(interArea/unionArea, 1)
}
