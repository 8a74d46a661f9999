package chart

import (
	"image/color"
	"io"
)

// Point is a pixel-space coordinate.
type Point struct {
	X, Y float64
}

// TextStyle selects size, color and anchor for DrawText. Anchors follow
// gg.DrawStringAnchored: AnchorX 0/0.5/1 puts x at the left/center/right of
// the text, AnchorY 0 puts the baseline at y and 0.5 centers the text on y.
type TextStyle struct {
	Size    float64
	Color   color.Color
	AnchorX float64
	AnchorY float64
}

// Surface is the 2D drawing capability the renderer needs.
type Surface interface {
	FillRect(x, y, w, h float64, c color.Color)
	// SetDash applies to subsequent strokes; no arguments means solid.
	SetDash(dashes ...float64)
	StrokePath(points []Point, c color.Color, width float64)
	// FillGradientPath closes the polygon and fills it with a vertical
	// linear gradient from top (y0) to bottom (y1).
	FillGradientPath(points []Point, y0, y1 float64, top, bottom color.Color)
	DrawText(text string, x, y float64, style TextStyle) error
	EncodePNG(w io.Writer) error
}

// SurfaceFactory creates a blank surface of the given size.
type SurfaceFactory func(width, height int) (Surface, error)
