package chart

import "image/color"

// Theme holds the fixed visual constants of the wallpaper.
type Theme struct {
	Background color.Color
	Line       color.Color
	LineWidth  float64
	AreaTop    color.Color
	AreaBottom color.Color

	RefLine      color.Color
	RefLineWidth float64
	RefDash      []float64

	Label     color.Color
	LabelSize float64
	LabelGap  float64 // between chart edge and labels

	HeaderSize float64
	HeaderX    float64
	HeaderY    float64
	Increase   color.Color
	Decrease   color.Color
	Clock      color.Color
	ClockSize  float64
	ClockRight float64 // right margin of the clock
}

var DefaultTheme = Theme{
	Background: color.RGBA{16, 20, 24, 255},
	Line:       color.RGBA{79, 195, 247, 255},
	LineWidth:  3,
	AreaTop:    color.RGBA{79, 195, 247, 140},
	AreaBottom: color.RGBA{79, 195, 247, 0},

	RefLine:      color.RGBA{120, 130, 140, 255},
	RefLineWidth: 1,
	RefDash:      []float64{10, 6},

	Label:     color.RGBA{190, 198, 206, 255},
	LabelSize: 18,
	LabelGap:  12,

	HeaderSize: 32,
	HeaderX:    60,
	HeaderY:    70,
	Increase:   color.RGBA{0, 200, 83, 255},
	Decrease:   color.RGBA{255, 82, 82, 255},
	Clock:      color.RGBA{255, 213, 79, 255},
	ClockSize:  44,
	ClockRight: 60,
}
