package chart

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type drawOp struct {
	kind   string
	points []Point
	color  color.Color
	dash   []float64
	text   string
	x, y   float64
	style  TextStyle
}

// recordingSurface keeps every operation in call order.
type recordingSurface struct {
	ops     []drawOp
	dash    []float64
	textErr error
}

func (r *recordingSurface) FillRect(x, y, w, h float64, c color.Color) {
	r.ops = append(r.ops, drawOp{kind: "rect", points: []Point{{x, y}, {x + w, y + h}}, color: c})
}

func (r *recordingSurface) SetDash(dashes ...float64) { r.dash = dashes }

func (r *recordingSurface) StrokePath(points []Point, c color.Color, width float64) {
	r.ops = append(r.ops, drawOp{kind: "stroke", points: points, color: c, dash: r.dash})
}

func (r *recordingSurface) FillGradientPath(points []Point, y0, y1 float64, top, bottom color.Color) {
	r.ops = append(r.ops, drawOp{kind: "gradient", points: points, color: top})
}

func (r *recordingSurface) DrawText(text string, x, y float64, style TextStyle) error {
	if r.textErr != nil {
		return r.textErr
	}
	r.ops = append(r.ops, drawOp{kind: "text", text: text, x: x, y: y, style: style, color: style.Color})
	return nil
}

func (r *recordingSurface) EncodePNG(w io.Writer) error {
	_, err := w.Write([]byte("frame"))
	return err
}

func (r *recordingSurface) kinds() []string {
	out := make([]string, len(r.ops))
	for i, op := range r.ops {
		out[i] = op.kind
	}
	return out
}

func TestRenderer_DrawOrder(t *testing.T) {
	s := seriesOf(100, 105, 95)
	stats, err := ComputeStatistics(s)
	require.NoError(t, err)
	domain, err := NewDomain(s, stats)
	require.NoError(t, err)

	rec := &recordingSurface{}
	r := NewRenderer(nil, WithLocation(time.UTC))
	now := time.Date(2024, 3, 1, 10, 7, 30, 0, time.UTC)
	require.NoError(t, r.Draw(rec, s, stats, domain, "SBER", now))

	require.Equal(t, []string{
		"rect",
		"stroke",
		"gradient",
		"stroke", "stroke", "stroke",
		"text", "text", "text",
		"text", "text",
		"text",
		"text",
	}, rec.kinds())

	vp, th := DefaultViewport, DefaultTheme

	bg := rec.ops[0]
	assert.Equal(t, th.Background, bg.color)
	assert.Equal(t, Point{0, 0}, bg.points[0])
	assert.Equal(t, Point{float64(vp.Width), float64(vp.Height)}, bg.points[1])

	line := rec.ops[1]
	require.Len(t, line.points, 3)
	assert.Empty(t, line.dash)
	assert.Equal(t, vp.ChartX, line.points[0].X)
	assert.Equal(t, vp.Right(), line.points[2].X)
	assert.Equal(t, vp.ChartY, line.points[1].Y, "max at top")
	assert.Equal(t, vp.Floor(), line.points[2].Y, "min at floor")

	area := rec.ops[2]
	require.Len(t, area.points, 5)
	assert.Equal(t, line.points, area.points[:3])
	assert.Equal(t, Point{vp.Right(), vp.Floor()}, area.points[3])
	assert.Equal(t, Point{vp.ChartX, vp.Floor()}, area.points[4])

	wantLevels := []float64{vp.Floor(), vp.ChartY + vp.ChartHeight/2, vp.ChartY}
	for i, op := range rec.ops[3:6] {
		assert.Equal(t, th.RefDash, op.dash)
		assert.Equal(t, vp.ChartX, op.points[0].X)
		assert.Equal(t, vp.Right(), op.points[1].X)
		assert.Equal(t, wantLevels[i], op.points[0].Y)

		label := rec.ops[6+i]
		assert.Equal(t, op.points[0].Y, label.y, "label aligned to its line")
		assert.Greater(t, label.x, vp.Right())
	}
	assert.Equal(t, "95.00", rec.ops[6].text)
	assert.Equal(t, "100.00", rec.ops[7].text)
	assert.Equal(t, "105.00", rec.ops[8].text)

	start, end := rec.ops[9], rec.ops[10]
	assert.Equal(t, "10:00", start.text)
	assert.Equal(t, "10:02", end.text)
	assert.Equal(t, vp.ChartX, start.x)
	assert.Equal(t, vp.Right(), end.x)
	assert.Greater(t, start.y, vp.Floor())

	header := rec.ops[11]
	assert.Equal(t, "SBER 95.00 ▼ 5.00 (-5.00%)", header.text)
	assert.Equal(t, th.Decrease, header.color)

	clock := rec.ops[12]
	assert.Equal(t, "10:07", clock.text)
	assert.Equal(t, th.Clock, clock.color)
	assert.Equal(t, 1.0, clock.style.AnchorX)
}

func TestRenderer_IncreaseColor(t *testing.T) {
	s := seriesOf(100, 110)
	stats, err := ComputeStatistics(s)
	require.NoError(t, err)
	domain, err := NewDomain(s, stats)
	require.NoError(t, err)

	rec := &recordingSurface{}
	require.NoError(t, NewRenderer(nil).Draw(rec, s, stats, domain, "GAZP", time.Now()))

	header := rec.ops[len(rec.ops)-2]
	assert.True(t, strings.Contains(header.text, "▲"))
	assert.Equal(t, DefaultTheme.Increase, header.color)
}

func TestRenderer_Errors(t *testing.T) {
	s := seriesOf(1, 2)
	stats, _ := ComputeStatistics(s)
	domain, _ := NewDomain(s, stats)

	t.Run("empty series", func(t *testing.T) {
		_, err := NewRenderer(nil).Render(nil, stats, domain, "X", time.Now())
		assert.ErrorIs(t, err, ErrEmptySeries)
	})

	t.Run("surface factory", func(t *testing.T) {
		boom := errors.New("no canvas")
		r := NewRenderer(func(int, int) (Surface, error) { return nil, boom })
		_, err := r.Render(s, stats, domain, "X", time.Now())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("text", func(t *testing.T) {
		boom := errors.New("glyph")
		r := NewRenderer(func(int, int) (Surface, error) { return &recordingSurface{textErr: boom}, nil })
		_, err := r.Render(s, stats, domain, "X", time.Now())
		assert.ErrorIs(t, err, boom)
	})
}

func TestRenderer_GGSurface(t *testing.T) {
	f, err := LoadFont("")
	require.NoError(t, err)

	s := seriesOf(100, 105, 95, 98, 101)
	stats, err := ComputeStatistics(s)
	require.NoError(t, err)
	domain, err := NewDomain(s, stats)
	require.NoError(t, err)

	r := NewRenderer(NewGGSurfaceFactory(f))
	frame, err := r.Render(s, stats, domain, "SBER", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1280, frame.Width)
	assert.Equal(t, 720, frame.Height)

	img, err := png.Decode(bytes.NewReader(frame.PNG))
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())

	bgR, bgG, bgB, _ := DefaultTheme.Background.RGBA()
	pr, pg, pb, _ := img.At(2, 2).RGBA()
	assert.Equal(t, []uint32{bgR, bgG, bgB}, []uint32{pr, pg, pb})
}

func TestLoadFont_MissingFile(t *testing.T) {
	_, err := LoadFont("/nonexistent/font.ttf")
	assert.Error(t, err)
}
