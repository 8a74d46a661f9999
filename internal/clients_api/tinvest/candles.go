package tinvest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yangirov/stock-background/internal/model"

	"github.com/shopspring/decimal"
)

// Quotation is the gateway's fixed-point number: units + nano*1e-9.
type Quotation struct {
	Units json.Number `json:"units"` // int64 arrives as a JSON string
	Nano  int32       `json:"nano"`
}

func (q Quotation) Decimal() (decimal.Decimal, error) {
	units := int64(0)
	if q.Units != "" {
		u, err := q.Units.Int64()
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid quotation units %q: %w", q.Units, err)
		}
		units = u
	}
	return decimal.New(units, 0).Add(decimal.New(int64(q.Nano), -9)), nil
}

type getCandlesRequest struct {
	InstrumentID string `json:"instrumentId"`
	From         string `json:"from"`
	To           string `json:"to"`
	Interval     string `json:"interval"`
	Limit        int    `json:"limit,omitempty"`
}

type historicCandle struct {
	Close      Quotation `json:"close"`
	Time       time.Time `json:"time"`
	IsComplete bool      `json:"isComplete"`
}

type getCandlesResponse struct {
	Candles []historicCandle `json:"candles"`
}

// GetCandles returns close prices in the order the gateway sent them.
func (c *Client) GetCandles(ctx context.Context, req model.CandlesRequest) (model.PriceSeries, error) {
	body := getCandlesRequest{
		InstrumentID: req.InstrumentID,
		From:         req.From.UTC().Format(time.RFC3339),
		To:           req.To.UTC().Format(time.RFC3339),
		Interval:     string(req.Interval),
		Limit:        req.Limit,
	}

	var resp getCandlesResponse
	if err := c.Call(ctx, "MarketDataService/GetCandles", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to get candles for %s: %w", req.InstrumentID, err)
	}

	series := make(model.PriceSeries, 0, len(resp.Candles))
	for i, cd := range resp.Candles {
		closePrice, err := cd.Close.Decimal()
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		series = append(series, model.PricePoint{Time: cd.Time, Close: closePrice})
	}
	return series, nil
}

// IntervalFor picks the finest candle granularity the gateway serves for a
// window and returns the window clamped to that granularity's maximum.
func IntervalFor(lookback time.Duration) (model.CandleInterval, time.Duration) {
	const day = 24 * time.Hour
	switch {
	case lookback <= day:
		return model.CandleInterval1Min, lookback
	case lookback <= 7*day:
		return model.CandleInterval5Min, lookback
	case lookback <= 21*day:
		return model.CandleInterval15Min, lookback
	case lookback <= 90*day:
		return model.CandleIntervalHour, lookback
	case lookback <= 365*day:
		return model.CandleIntervalDay, lookback
	default:
		return model.CandleIntervalDay, 365 * day
	}
}
