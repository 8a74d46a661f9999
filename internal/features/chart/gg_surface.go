package chart

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// LoadFont parses a TTF file, or the embedded Go Regular font when path is empty.
func LoadFont(path string) (*truetype.Font, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
		data = b
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return f, nil
}

// GGSurface implements Surface on a fogleman/gg context.
type GGSurface struct {
	dc    *gg.Context
	font  *truetype.Font
	faces map[float64]font.Face
}

// NewGGSurfaceFactory returns a factory sharing one parsed font.
func NewGGSurfaceFactory(f *truetype.Font) SurfaceFactory {
	return func(width, height int) (Surface, error) {
		if width <= 0 || height <= 0 {
			return nil, fmt.Errorf("invalid canvas size %dx%d", width, height)
		}
		if f == nil {
			return nil, fmt.Errorf("font is not loaded")
		}
		return &GGSurface{
			dc:    gg.NewContext(width, height),
			font:  f,
			faces: make(map[float64]font.Face),
		}, nil
	}
}

func (s *GGSurface) FillRect(x, y, w, h float64, c color.Color) {
	s.dc.SetColor(c)
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.Fill()
}

func (s *GGSurface) SetDash(dashes ...float64) {
	s.dc.SetDash(dashes...)
}

func (s *GGSurface) StrokePath(points []Point, c color.Color, width float64) {
	if len(points) == 0 {
		return
	}
	s.dc.SetColor(c)
	s.dc.SetLineWidth(width)
	s.dc.SetLineJoin(gg.LineJoinRound)
	s.tracePath(points)
	s.dc.Stroke()
}

func (s *GGSurface) FillGradientPath(points []Point, y0, y1 float64, top, bottom color.Color) {
	if len(points) < 3 {
		return
	}
	grad := gg.NewLinearGradient(0, y0, 0, y1)
	grad.AddColorStop(0, top)
	grad.AddColorStop(1, bottom)

	s.tracePath(points)
	s.dc.ClosePath()
	s.dc.SetFillStyle(grad)
	s.dc.Fill()
}

func (s *GGSurface) DrawText(text string, x, y float64, style TextStyle) error {
	face, err := s.face(style.Size)
	if err != nil {
		return err
	}
	s.dc.SetFontFace(face)
	s.dc.SetColor(style.Color)
	s.dc.DrawStringAnchored(text, x, y, style.AnchorX, style.AnchorY)
	return nil
}

func (s *GGSurface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}

func (s *GGSurface) tracePath(points []Point) {
	s.dc.ClearPath()
	s.dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		s.dc.LineTo(p.X, p.Y)
	}
}

// face caches one font.Face per size; gg only keeps the current one.
func (s *GGSurface) face(size float64) (font.Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid font size %v", size)
	}
	if f, ok := s.faces[size]; ok {
		return f, nil
	}
	f := truetype.NewFace(s.font, &truetype.Options{Size: size})
	s.faces[size] = f
	return f, nil
}
