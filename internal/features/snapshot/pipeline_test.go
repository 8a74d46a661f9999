package snapshot

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yangirov/stock-background/internal/clients_api/tinvest"
	"github.com/yangirov/stock-background/internal/features/chart"
	"github.com/yangirov/stock-background/internal/features/notify"
	"github.com/yangirov/stock-background/internal/infra/metrics"
	"github.com/yangirov/stock-background/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMarket struct {
	mock.Mock
}

func (m *mockMarket) ResolveInstrument(ctx context.Context, ticker, classCode string) (model.Instrument, error) {
	args := m.Called(ctx, ticker, classCode)
	return args.Get(0).(model.Instrument), args.Error(1)
}

func (m *mockMarket) GetCandles(ctx context.Context, req model.CandlesRequest) (model.PriceSeries, error) {
	args := m.Called(ctx, req)
	series, _ := args.Get(0).(model.PriceSeries)
	return series, args.Error(1)
}

type recordingSender struct {
	messages []string
}

func (r *recordingSender) Send(text string) error {
	r.messages = append(r.messages, text)
	return nil
}

var (
	now  = time.Date(2024, 5, 10, 12, 30, 0, 0, time.UTC)
	sber = model.Instrument{UID: "uid-sber", Ticker: "SBER", ClassCode: "TQBR"}
)

func series(prices ...int64) model.PriceSeries {
	out := make(model.PriceSeries, len(prices))
	for i, p := range prices {
		out[i] = model.PricePoint{
			Time:  now.Add(time.Duration(i-len(prices)) * time.Minute),
			Close: decimal.NewFromInt(p),
		}
	}
	return out
}

func newRenderer(t *testing.T) *chart.Renderer {
	t.Helper()
	f, err := chart.LoadFont("")
	require.NoError(t, err)
	return chart.NewRenderer(chart.NewGGSurfaceFactory(f), chart.WithLocation(time.UTC))
}

func newPipeline(t *testing.T, market MarketData, out string, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return New(market, newRenderer(t), Options{
		Ticker:        "SBER",
		ClassCode:     "TQBR",
		Lookback:      24 * time.Hour,
		CandleLimit:   2400,
		OutputPath:    out,
		PriceDecimals: 2,
	}, opts...)
}

func TestRun_EndToEnd(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Return(sber, nil)
	market.On("GetCandles", mock.Anything, model.CandlesRequest{
		InstrumentID: "uid-sber",
		From:         now.Add(-24 * time.Hour),
		To:           now,
		Interval:     model.CandleInterval1Min,
		Limit:        2400,
	}).Return(series(100, 105, 95), nil)

	out := filepath.Join(t.TempDir(), "wallpaper.png")
	res, err := newPipeline(t, market, out).Run(context.Background(), "cycle-1")
	require.NoError(t, err)
	market.AssertExpectations(t)

	s := res.Stats
	assert.True(t, s.Min.Equal(decimal.NewFromInt(95)))
	assert.True(t, s.Max.Equal(decimal.NewFromInt(105)))
	assert.True(t, s.Avg.Equal(decimal.NewFromInt(100)))
	assert.True(t, s.Diff.Equal(decimal.NewFromInt(-5)))
	assert.True(t, s.Percent.Equal(decimal.NewFromInt(-5)))
	assert.Equal(t, "SBER 95.00 ▼ 5.00 (-5.00%)", chart.FormatHeader("SBER", s, 2))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, len(data))
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestRun_LongLookbackUsesCoarserInterval(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Return(sber, nil)
	market.On("GetCandles", mock.Anything, mock.MatchedBy(func(req model.CandlesRequest) bool {
		return req.Interval == model.CandleIntervalHour && req.From.Equal(now.Add(-30*24*time.Hour))
	})).Return(series(100, 101), nil)

	p := newPipeline(t, market, filepath.Join(t.TempDir(), "w.png"))
	p.opts.Lookback = 30 * 24 * time.Hour

	_, err := p.Run(context.Background(), "cycle-1")
	require.NoError(t, err)
	market.AssertExpectations(t)
}

func TestRun_UnsortedSeriesIsSorted(t *testing.T) {
	s := series(100, 110, 120)
	s[0], s[2] = s[2], s[0]

	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Return(sber, nil)
	market.On("GetCandles", mock.Anything, mock.Anything).Return(s, nil)

	res, err := newPipeline(t, market, filepath.Join(t.TempDir(), "w.png")).Run(context.Background(), "c")
	require.NoError(t, err)
	assert.True(t, res.Stats.First.Equal(decimal.NewFromInt(100)))
	assert.True(t, res.Stats.Last.Equal(decimal.NewFromInt(120)))
}

func TestRunCycle_EmptySeriesIsContained(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Return(sber, nil)
	market.On("GetCandles", mock.Anything, mock.Anything).Return(model.PriceSeries{}, nil)

	out := filepath.Join(t.TempDir(), "wallpaper.png")
	m := metrics.New()
	p := newPipeline(t, market, out, WithMetrics(m))

	var err error
	assert.NotPanics(t, func() { err = p.RunCycle(context.Background()) })
	assert.ErrorIs(t, err, chart.ErrEmptySeries)
	assert.NoFileExists(t, out)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.ResultFailure)))
}

func TestRunCycle_ResolveFailureKeepsPreviousFrame(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").
		Return(model.Instrument{}, tinvest.ErrInstrumentNotFound)

	out := filepath.Join(t.TempDir(), "wallpaper.png")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0644))

	err := newPipeline(t, market, out).RunCycle(context.Background())
	assert.ErrorIs(t, err, tinvest.ErrInstrumentNotFound)
	market.AssertNotCalled(t, "GetCandles", mock.Anything, mock.Anything)

	data, readErr := os.ReadFile(out)
	require.NoError(t, readErr)
	assert.Equal(t, "previous", string(data))
}

func TestRunCycle_WriteFailure(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Return(sber, nil)
	market.On("GetCandles", mock.Anything, mock.Anything).Return(series(1, 2), nil)

	diskFull := errors.New("no space left on device")
	p := newPipeline(t, market, "w.png", WithFrameWriter(func(string, []byte) error { return diskFull }))

	assert.ErrorIs(t, p.RunCycle(context.Background()), diskFull)
}

func TestRunCycle_PanicIsContained(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Run(func(mock.Arguments) {
		panic("boom")
	}).Return(sber, nil)

	m := metrics.New()
	p := newPipeline(t, market, filepath.Join(t.TempDir(), "w.png"), WithMetrics(m))

	var err error
	assert.NotPanics(t, func() { err = p.RunCycle(context.Background()) })
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.ResultFailure)))
}

func TestRunCycle_AlertsOnEdges(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").Return(sber, nil)
	market.On("GetCandles", mock.Anything, mock.Anything).Return(model.PriceSeries{}, nil).Twice()
	market.On("GetCandles", mock.Anything, mock.Anything).Return(series(1, 2), nil)

	sender := &recordingSender{}
	m := metrics.New()
	p := newPipeline(t, market, filepath.Join(t.TempDir(), "w.png"),
		WithAlerts(notify.NewAlertGate(sender, "SBER")),
		WithMetrics(m))

	assert.Error(t, p.RunCycle(context.Background()))
	assert.Error(t, p.RunCycle(context.Background()))
	assert.NoError(t, p.RunCycle(context.Background()))

	require.Len(t, sender.messages, 2)
	assert.Contains(t, sender.messages[0], "failed")
	assert.Contains(t, sender.messages[1], "recovered")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.ResultFailure)))
}

func TestRunCycle_CancelledIsNotAFailure(t *testing.T) {
	market := new(mockMarket)
	market.On("ResolveInstrument", mock.Anything, "SBER", "TQBR").
		Return(model.Instrument{}, context.Canceled)

	m := metrics.New()
	p := newPipeline(t, market, filepath.Join(t.TempDir(), "w.png"), WithMetrics(m))

	assert.ErrorIs(t, p.RunCycle(context.Background()), context.Canceled)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues(metrics.ResultFailure)))
}
