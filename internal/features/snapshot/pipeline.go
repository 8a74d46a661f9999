package snapshot

// Package snapshot runs one wallpaper cycle: resolve the instrument, fetch
// candles, compute statistics, render and replace the output file.

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/yangirov/stock-background/internal/clients_api/tinvest"
	"github.com/yangirov/stock-background/internal/features/chart"
	"github.com/yangirov/stock-background/internal/features/notify"
	"github.com/yangirov/stock-background/internal/infra/fs"
	"github.com/yangirov/stock-background/internal/infra/log"
	"github.com/yangirov/stock-background/internal/infra/metrics"
	"github.com/yangirov/stock-background/internal/model"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// MarketData is the part of the market-data client a cycle needs.
type MarketData interface {
	ResolveInstrument(ctx context.Context, ticker, classCode string) (model.Instrument, error)
	GetCandles(ctx context.Context, req model.CandlesRequest) (model.PriceSeries, error)
}

// FrameWriter replaces the file at path with data.
type FrameWriter func(path string, data []byte) error

type Options struct {
	Ticker        string
	ClassCode     string
	Lookback      time.Duration
	CandleLimit   int
	OutputPath    string
	PriceDecimals int32
}

// Result describes one written frame.
type Result struct {
	CycleID    string
	Instrument model.Instrument
	Stats      chart.Statistics
	Points     int
	Bytes      int
	Path       string
}

type Pipeline struct {
	market   MarketData
	renderer *chart.Renderer
	opts     Options

	metrics *metrics.Metrics
	alerts  *notify.AlertGate
	write   FrameWriter
	now     func() time.Time
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithAlerts(g *notify.AlertGate) Option {
	return func(p *Pipeline) { p.alerts = g }
}

func WithFrameWriter(w FrameWriter) Option {
	return func(p *Pipeline) { p.write = w }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(market MarketData, renderer *chart.Renderer, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		market:   market,
		renderer: renderer,
		opts:     opts,
		write:    fs.WriteFileAtomic,
		now:      time.Now,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Run executes one cycle and returns the first error. Nothing is written
// unless every step before the write succeeded.
func (p *Pipeline) Run(ctx context.Context, cycleID string) (*Result, error) {
	cycleField := log.CycleField(cycleID)

	inst, err := p.market.ResolveInstrument(ctx, p.opts.Ticker, p.opts.ClassCode)
	if err != nil {
		return nil, fmt.Errorf("resolve instrument: %w", err)
	}
	log.LogDebug("Instrument resolved", cycleField,
		zap.String("uid", inst.UID),
		zap.String("ticker", inst.Ticker))

	now := p.now()
	interval, window := tinvest.IntervalFor(p.opts.Lookback)
	if window < p.opts.Lookback {
		log.LogWarn("Lookback clamped to the longest window the interval allows", cycleField,
			zap.Duration("lookback", p.opts.Lookback),
			zap.Duration("window", window))
	}

	series, err := p.market.GetCandles(ctx, model.CandlesRequest{
		InstrumentID: inst.UID,
		From:         now.Add(-window),
		To:           now,
		Interval:     interval,
		Limit:        p.opts.CandleLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch candles: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("fetch candles for %s: %w", inst.Ticker, chart.ErrEmptySeries)
	}
	if !series.IsSorted() {
		log.LogWarn("Candles arrived out of order, sorting", cycleField, zap.Int("points", len(series)))
		series = series.Sorted()
	}

	stats, err := chart.ComputeStatistics(series)
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}
	domain, err := chart.NewDomain(series, stats)
	if err != nil {
		return nil, fmt.Errorf("compute domain: %w", err)
	}

	frame, err := p.renderer.Render(series, stats, domain, inst.Ticker, now)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	if err := p.write(p.opts.OutputPath, frame.PNG); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	return &Result{
		CycleID:    cycleID,
		Instrument: inst,
		Stats:      stats,
		Points:     len(series),
		Bytes:      len(frame.PNG),
		Path:       p.opts.OutputPath,
	}, nil
}

// RunCycle is the scheduler entry point. Every failure, panics included, ends
// here as a log line; the error is returned for one-shot callers.
func (p *Pipeline) RunCycle(ctx context.Context) (err error) {
	cycleID := log.NewCycleID()
	start := p.now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
			log.LogError("Wallpaper cycle panicked",
				log.CycleField(cycleID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			p.metrics.ObserveFailure(p.now().Sub(start), err)
			p.alerts.Observe(err)
		}
	}()

	res, err := p.Run(ctx, cycleID)
	elapsed := p.now().Sub(start)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.LogWarn("Wallpaper cycle abandoned", log.CycleField(cycleID), zap.Error(err))
			return err
		}
		log.LogError("Wallpaper update failed",
			log.CycleField(cycleID),
			zap.String("ticker", p.opts.Ticker),
			zap.Error(err),
			zap.Int64("duration_ms", elapsed.Milliseconds()))
		p.metrics.ObserveFailure(elapsed, err)
		p.alerts.Observe(err)
		return err
	}

	lastPrice, _ := res.Stats.Last.Float64()
	log.LogSuccess(fmt.Sprintf("%s %s, %d points, %s",
		res.Instrument.Ticker,
		chart.FormatPrice(res.Stats.Last, p.opts.PriceDecimals),
		res.Points,
		humanize.Bytes(uint64(res.Bytes))),
		log.CycleField(cycleID),
		zap.String("path", res.Path),
		zap.Int64("duration_ms", elapsed.Milliseconds()))
	p.metrics.ObserveSuccess(elapsed, lastPrice, res.Bytes, p.now())
	p.alerts.Observe(nil)
	return nil
}
