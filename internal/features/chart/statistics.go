package chart

import (
	"errors"
	"time"

	"github.com/yangirov/stock-background/internal/model"

	"github.com/shopspring/decimal"
)

// ErrEmptySeries is returned for a series with no points.
var ErrEmptySeries = errors.New("price series is empty")

var hundred = decimal.NewFromInt(100)

// Statistics is derived once per render from the same series that is projected.
type Statistics struct {
	Min   decimal.Decimal
	Max   decimal.Decimal
	Avg   decimal.Decimal
	First decimal.Decimal
	Last  decimal.Decimal
	Diff  decimal.Decimal
	// Percent is Diff/First*100. Zero with HasPercent=false when First is zero.
	Percent    decimal.Decimal
	HasPercent bool
}

// ComputeStatistics walks the series once.
func ComputeStatistics(series model.PriceSeries) (Statistics, error) {
	if len(series) == 0 {
		return Statistics{}, ErrEmptySeries
	}

	first := series.First().Close
	minV, maxV, sum := first, first, decimal.Zero
	for _, p := range series {
		if p.Close.LessThan(minV) {
			minV = p.Close
		}
		if p.Close.GreaterThan(maxV) {
			maxV = p.Close
		}
		sum = sum.Add(p.Close)
	}

	avg := sum.Div(decimal.NewFromInt(int64(len(series))))
	// rounding of the division must not leave the [min, max] band
	if avg.LessThan(minV) {
		avg = minV
	}
	if avg.GreaterThan(maxV) {
		avg = maxV
	}

	last := series.Last().Close
	diff := last.Sub(first)

	stats := Statistics{
		Min:   minV,
		Max:   maxV,
		Avg:   avg,
		First: first,
		Last:  last,
		Diff:  diff,
	}
	if !first.IsZero() {
		stats.Percent = diff.Div(first).Mul(hundred)
		stats.HasPercent = true
	}
	return stats, nil
}

// Domain is the data-space extent used for projection.
type Domain struct {
	XMin     time.Time
	XMax     time.Time
	PriceMin decimal.Decimal
	PriceMax decimal.Decimal
}

// NewDomain takes the time bounds from the series ends and the price bounds from stats.
func NewDomain(series model.PriceSeries, stats Statistics) (Domain, error) {
	if len(series) == 0 {
		return Domain{}, ErrEmptySeries
	}
	return Domain{
		XMin:     series.First().Time,
		XMax:     series.Last().Time,
		PriceMin: stats.Min,
		PriceMax: stats.Max,
	}, nil
}
