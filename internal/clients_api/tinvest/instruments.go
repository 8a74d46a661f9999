package tinvest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yangirov/stock-background/internal/model"
)

type getInstrumentByRequest struct {
	IDType    string `json:"idType"`
	ClassCode string `json:"classCode"`
	ID        string `json:"id"`
}

type instrumentResponse struct {
	Instrument *struct {
		UID       string `json:"uid"`
		FIGI      string `json:"figi"`
		Ticker    string `json:"ticker"`
		ClassCode string `json:"classCode"`
		Name      string `json:"name"`
	} `json:"instrument"`
}

// ResolveInstrument looks up an instrument by ticker within a class code.
func (c *Client) ResolveInstrument(ctx context.Context, ticker, classCode string) (model.Instrument, error) {
	req := getInstrumentByRequest{
		IDType:    "INSTRUMENT_ID_TYPE_TICKER",
		ClassCode: classCode,
		ID:        ticker,
	}

	var resp instrumentResponse
	if err := c.Call(ctx, "InstrumentsService/GetInstrumentBy", req, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return model.Instrument{}, fmt.Errorf("%w: %s/%s", ErrInstrumentNotFound, ticker, classCode)
		}
		return model.Instrument{}, fmt.Errorf("failed to resolve instrument %s/%s: %w", ticker, classCode, err)
	}

	if resp.Instrument == nil || resp.Instrument.UID == "" {
		return model.Instrument{}, fmt.Errorf("%w: %s/%s", ErrInstrumentNotFound, ticker, classCode)
	}

	inst := resp.Instrument
	displayTicker := inst.Ticker
	if displayTicker == "" {
		displayTicker = strings.ToUpper(ticker)
	}
	return model.Instrument{
		UID:       inst.UID,
		FIGI:      inst.FIGI,
		Ticker:    displayTicker,
		ClassCode: inst.ClassCode,
		Name:      inst.Name,
	}, nil
}
