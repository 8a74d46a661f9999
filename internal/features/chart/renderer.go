package chart

import (
	"bytes"
	"fmt"
	"time"

	"github.com/yangirov/stock-background/internal/model"
)

// Frame is one encoded wallpaper image.
type Frame struct {
	PNG    []byte
	Width  int
	Height int
}

// Renderer draws the wallpaper layers in a fixed order onto a fresh surface.
type Renderer struct {
	viewport   Viewport
	theme      Theme
	newSurface SurfaceFactory
	location   *time.Location
	places     int32
}

type RendererOption func(*Renderer)

// WithLocation sets the zone used for the time labels and clock.
func WithLocation(loc *time.Location) RendererOption {
	return func(r *Renderer) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithPriceDecimals sets how many decimals price labels carry.
func WithPriceDecimals(places int32) RendererOption {
	return func(r *Renderer) { r.places = places }
}

func WithTheme(t Theme) RendererOption {
	return func(r *Renderer) { r.theme = t }
}

func NewRenderer(newSurface SurfaceFactory, opts ...RendererOption) *Renderer {
	r := &Renderer{
		viewport:   DefaultViewport,
		theme:      DefaultTheme,
		newSurface: newSurface,
		location:   time.Local,
		places:     2,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the frame for one cycle. The series must be non-empty and
// stats/domain must come from it.
func (r *Renderer) Render(series model.PriceSeries, stats Statistics, domain Domain, label string, now time.Time) (*Frame, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}

	surface, err := r.newSurface(r.viewport.Width, r.viewport.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to create surface: %w", err)
	}

	if err := r.Draw(surface, series, stats, domain, label, now); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := surface.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return &Frame{PNG: buf.Bytes(), Width: r.viewport.Width, Height: r.viewport.Height}, nil
}

// Draw issues every drawing operation onto s. Later layers paint over earlier ones.
func (r *Renderer) Draw(s Surface, series model.PriceSeries, stats Statistics, domain Domain, label string, now time.Time) error {
	if len(series) == 0 {
		return ErrEmptySeries
	}
	vp, th := r.viewport, r.theme
	proj := NewProjector(domain, vp)

	// 1. background
	s.FillRect(0, 0, float64(vp.Width), float64(vp.Height), th.Background)

	// 2. price line
	line := make([]Point, 0, len(series)+2)
	for _, p := range series {
		line = append(line, Point{X: proj.ProjectX(p.Time), Y: proj.ProjectY(p.Close)})
	}
	s.SetDash()
	s.StrokePath(line, th.Line, th.LineWidth)

	// 3. area under the curve
	area := make([]Point, 0, len(line)+2)
	area = append(area, line...)
	area = append(area,
		Point{X: line[len(line)-1].X, Y: vp.Floor()},
		Point{X: line[0].X, Y: vp.Floor()},
	)
	s.FillGradientPath(area, vp.ChartY, vp.Floor(), th.AreaTop, th.AreaBottom)

	// 4. reference lines, 5. their labels
	levels := [3]struct {
		y    float64
		text string
	}{
		{proj.ProjectY(stats.Min), FormatPrice(stats.Min, r.places)},
		{proj.ProjectY(stats.Avg), FormatPrice(stats.Avg, r.places)},
		{proj.ProjectY(stats.Max), FormatPrice(stats.Max, r.places)},
	}
	s.SetDash(th.RefDash...)
	for _, lv := range levels {
		s.StrokePath([]Point{{X: vp.ChartX, Y: lv.y}, {X: vp.Right(), Y: lv.y}}, th.RefLine, th.RefLineWidth)
	}
	s.SetDash()

	labelStyle := TextStyle{Size: th.LabelSize, Color: th.Label, AnchorX: 0, AnchorY: 0.5}
	for _, lv := range levels {
		if err := s.DrawText(lv.text, vp.Right()+th.LabelGap, lv.y, labelStyle); err != nil {
			return fmt.Errorf("failed to draw level label: %w", err)
		}
	}

	// 6. time axis
	timeY := vp.Floor() + th.LabelGap
	start := TextStyle{Size: th.LabelSize, Color: th.Label, AnchorX: 0, AnchorY: 1}
	if err := s.DrawText(FormatClock(domain.XMin.In(r.location)), vp.ChartX, timeY, start); err != nil {
		return fmt.Errorf("failed to draw start time: %w", err)
	}
	end := start
	end.AnchorX = 1
	if err := s.DrawText(FormatClock(domain.XMax.In(r.location)), vp.Right(), timeY, end); err != nil {
		return fmt.Errorf("failed to draw end time: %w", err)
	}

	// 7. header
	headerColor := th.Increase
	if stats.Diff.IsNegative() {
		headerColor = th.Decrease
	}
	header := TextStyle{Size: th.HeaderSize, Color: headerColor}
	if err := s.DrawText(FormatHeader(label, stats, r.places), th.HeaderX, th.HeaderY, header); err != nil {
		return fmt.Errorf("failed to draw header: %w", err)
	}

	// 8. freshness clock
	clock := TextStyle{Size: th.ClockSize, Color: th.Clock, AnchorX: 1}
	if err := s.DrawText(FormatClock(now.In(r.location)), float64(vp.Width)-th.ClockRight, th.HeaderY, clock); err != nil {
		return fmt.Errorf("failed to draw clock: %w", err)
	}
	return nil
}
