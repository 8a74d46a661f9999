package chart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Viewport is the fixed pixel layout of the canvas.
type Viewport struct {
	Width  int
	Height int

	// chart area, margins around it hold labels
	ChartX      float64
	ChartY      float64
	ChartWidth  float64
	ChartHeight float64
}

// DefaultViewport is the 1280x720 wallpaper layout.
var DefaultViewport = Viewport{
	Width:       1280,
	Height:      720,
	ChartX:      60,
	ChartY:      120,
	ChartWidth:  1060,
	ChartHeight: 500,
}

// Floor is the pixel-y of the chart area bottom edge.
func (v Viewport) Floor() float64 { return v.ChartY + v.ChartHeight }

// Right is the pixel-x of the chart area right edge.
func (v Viewport) Right() float64 { return v.ChartX + v.ChartWidth }

// Projector maps data space onto the viewport's chart area.
//
// A zero-width time domain maps every timestamp to the left edge and a
// zero-height price domain maps every price to mid-height, so the output is
// always finite.
type Projector struct {
	vp       Viewport
	xMin     time.Time
	xSpan    time.Duration
	priceMax float64
	priceLen float64
}

func NewProjector(d Domain, vp Viewport) Projector {
	maxF := d.PriceMax.InexactFloat64()
	minF := d.PriceMin.InexactFloat64()
	// span taken from the same floats ProjectY subtracts, so both ends land exactly
	return Projector{
		vp:       vp,
		xMin:     d.XMin,
		xSpan:    d.XMax.Sub(d.XMin),
		priceMax: maxF,
		priceLen: maxF - minF,
	}
}

func (p Projector) ProjectX(t time.Time) float64 {
	if p.xSpan <= 0 {
		return p.vp.ChartX
	}
	ratio := float64(t.Sub(p.xMin)) / float64(p.xSpan)
	return p.vp.ChartX + ratio*p.vp.ChartWidth
}

func (p Projector) ProjectY(price decimal.Decimal) float64 {
	if p.priceLen <= 0 {
		return p.vp.ChartY + p.vp.ChartHeight/2
	}
	ratio := (p.priceMax - price.InexactFloat64()) / p.priceLen
	return p.vp.ChartY + ratio*p.vp.ChartHeight
}
