package compositor

import "image"

// Placement is where the resized subject lands on the canvas. X and Y may be
// negative or push the subject past the canvas edge; nothing is clamped.
type Placement struct {
	X, Y int
	W, H int
}

// Rect returns the placement as a rectangle in canvas coordinates.
func (p Placement) Rect() image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+p.W, p.Y+p.H)
}

// Place sizes the subject to heightRatio of the canvas height, keeping its
// aspect ratio, centres it and lifts it by shift*canvasH.
func Place(canvasW, canvasH, fgW, fgH int, heightRatio, shift float64) Placement {
	h := int(float64(canvasH) * heightRatio)
	if h < 1 {
		h = 1
	}
	w := 1
	if fgH > 0 {
		w = int(float64(h) * float64(fgW) / float64(fgH))
	}
	if w < 1 {
		w = 1
	}
	return Placement{
		X: floorDiv(canvasW-w, 2),
		Y: floorDiv(canvasH-h, 2) - int(float64(canvasH)*shift),
		W: w,
		H: h,
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
