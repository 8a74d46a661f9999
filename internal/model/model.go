package model

// Shared domain types passed between the market data client, the chart
// package and the snapshot pipeline.

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one closed candle reduced to its close price.
type PricePoint struct {
	Time  time.Time
	Close decimal.Decimal
}

// PriceSeries is ordered by Time ascending.
type PriceSeries []PricePoint

// First returns the first point. The series must not be empty.
func (s PriceSeries) First() PricePoint { return s[0] }

// Last returns the last point. The series must not be empty.
func (s PriceSeries) Last() PricePoint { return s[len(s)-1] }

// IsSorted reports whether points are in non-decreasing time order.
func (s PriceSeries) IsSorted() bool {
	return sort.SliceIsSorted(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })
}

// Sorted returns a time-ordered copy; equal timestamps keep their order.
func (s PriceSeries) Sorted() PriceSeries {
	out := make(PriceSeries, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Instrument is a tradable security resolved from ticker + class code.
type Instrument struct {
	UID       string
	FIGI      string
	Ticker    string
	ClassCode string
	Name      string
}

// CandleInterval is the granularity requested from the market data service.
type CandleInterval string

const (
	CandleInterval1Min  CandleInterval = "CANDLE_INTERVAL_1_MIN"
	CandleInterval5Min  CandleInterval = "CANDLE_INTERVAL_5_MIN"
	CandleInterval15Min CandleInterval = "CANDLE_INTERVAL_15_MIN"
	CandleIntervalHour  CandleInterval = "CANDLE_INTERVAL_HOUR"
	CandleIntervalDay   CandleInterval = "CANDLE_INTERVAL_DAY"
)

// CandlesRequest describes one historical fetch.
type CandlesRequest struct {
	InstrumentID string
	From         time.Time
	To           time.Time
	Interval     CandleInterval
	Limit        int
}
