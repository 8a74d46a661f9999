package tinvest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yangirov/stock-background/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, Token: "t.secret", RateLimit: 1000, Timeout: 5 * time.Second})
}

func TestResolveInstrument(t *testing.T) {
	var got getInstrumentByRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tinkoff.public.invest.api.contract.v1.InstrumentsService/GetInstrumentBy", r.URL.Path)
		assert.Equal(t, "Bearer t.secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Write([]byte(`{"instrument":{"uid":"e6123145-9665-43e0-8413-cd61b8aa9b13","figi":"BBG004730N88","ticker":"SBER","classCode":"TQBR","name":"Сбер Банк"}}`))
	})

	inst, err := c.ResolveInstrument(context.Background(), "SBER", "TQBR")
	require.NoError(t, err)

	assert.Equal(t, "INSTRUMENT_ID_TYPE_TICKER", got.IDType)
	assert.Equal(t, "TQBR", got.ClassCode)
	assert.Equal(t, "SBER", got.ID)

	assert.Equal(t, model.Instrument{
		UID:       "e6123145-9665-43e0-8413-cd61b8aa9b13",
		FIGI:      "BBG004730N88",
		Ticker:    "SBER",
		ClassCode: "TQBR",
		Name:      "Сбер Банк",
	}, inst)
}

func TestResolveInstrument_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":5,"message":"50002","description":"instrument not found"}`))
	})

	_, err := c.ResolveInstrument(context.Background(), "NOPE", "TQBR")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestResolveInstrument_EmptyReply(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := c.ResolveInstrument(context.Background(), "SBER", "TQBR")
	assert.ErrorIs(t, err, ErrInstrumentNotFound)
}

func TestGetCandles(t *testing.T) {
	var got getCandlesRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tinkoff.public.invest.api.contract.v1.MarketDataService/GetCandles", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Write([]byte(`{"candles":[
			{"close":{"units":"280","nano":150000000},"time":"2024-05-10T07:00:00Z","isComplete":true},
			{"close":{"units":"281","nano":0},"time":"2024-05-10T07:01:00Z","isComplete":true},
			{"close":{"units":0,"nano":-500000000},"time":"2024-05-10T07:02:00Z","isComplete":false}
		]}`))
	})

	from := time.Date(2024, 5, 10, 10, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	series, err := c.GetCandles(context.Background(), model.CandlesRequest{
		InstrumentID: "uid-1",
		From:         from,
		To:           from.Add(time.Hour),
		Interval:     model.CandleInterval1Min,
		Limit:        2400,
	})
	require.NoError(t, err)

	assert.Equal(t, "uid-1", got.InstrumentID)
	assert.Equal(t, "2024-05-10T07:00:00Z", got.From)
	assert.Equal(t, "2024-05-10T08:00:00Z", got.To)
	assert.Equal(t, "CANDLE_INTERVAL_1_MIN", got.Interval)
	assert.Equal(t, 2400, got.Limit)

	require.Len(t, series, 3)
	assert.True(t, series[0].Close.Equal(decimal.RequireFromString("280.15")))
	assert.True(t, series[1].Close.Equal(decimal.NewFromInt(281)))
	assert.True(t, series[2].Close.Equal(decimal.RequireFromString("-0.5")))
	assert.Equal(t, time.Date(2024, 5, 10, 7, 1, 0, 0, time.UTC), series[1].Time.UTC())
}

func TestGetCandles_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":16,"message":"40003","description":"authentication token is missing or invalid"}`))
	})

	_, err := c.GetCandles(context.Background(), model.CandlesRequest{InstrumentID: "uid-1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, 16, apiErr.Code)
	assert.Contains(t, apiErr.Error(), "authentication token is missing")
}

func TestMakeRequest_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, Token: "x", MaxResponseSize: 16})

	_, err := c.MakeRequest(context.Background(), http.MethodPost, "/x", nil)
	assert.Error(t, err)
}

func TestMakeRequest_CancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.MakeRequest(ctx, http.MethodPost, "/x", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQuotationDecimal(t *testing.T) {
	q := Quotation{Units: "114", Nano: 250000000}
	d, err := q.Decimal()
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("114.25")))

	_, err = Quotation{Units: "1.5"}.Decimal()
	assert.Error(t, err)
}

func TestIntervalFor(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		lookback time.Duration
		want     model.CandleInterval
		window   time.Duration
	}{
		{6 * time.Hour, model.CandleInterval1Min, 6 * time.Hour},
		{day, model.CandleInterval1Min, day},
		{3 * day, model.CandleInterval5Min, 3 * day},
		{14 * day, model.CandleInterval15Min, 14 * day},
		{60 * day, model.CandleIntervalHour, 60 * day},
		{200 * day, model.CandleIntervalDay, 200 * day},
		{1000 * day, model.CandleIntervalDay, 365 * day},
	}
	for _, tt := range tests {
		got, window := IntervalFor(tt.lookback)
		assert.Equal(t, tt.want, got, tt.lookback.String())
		assert.Equal(t, tt.window, window, tt.lookback.String())
	}
}
