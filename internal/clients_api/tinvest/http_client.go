package tinvest

// Package tinvest is a small client for the T-Invest REST gateway.
// This file is the transport layer: auth, rate limiting, circuit breaking,
// request/response logging. It knows nothing about instruments or candles.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yangirov/stock-background/internal/infra/log"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL - production REST gateway
	DefaultBaseURL = "https://invest-public-api.tinkoff.ru/rest"

	servicePrefix = "/tinkoff.public.invest.api.contract.v1."

	defaultMaxResponseSize = 10 * 1024 * 1024
)

// Options for NewClient. Zero values fall back to defaults.
type Options struct {
	BaseURL         string
	Token           string
	Timeout         time.Duration // 0 = no client-side timeout
	RateLimit       float64       // requests per second
	MaxResponseSize int64
	HTTPClient      *http.Client
}

// Client talks to the REST gateway with a bearer token.
type Client struct {
	baseURL         string
	token           string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	maxResponseSize int64
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := opts.RateLimit
	if limit <= 0 {
		limit = 5
	}

	maxSize := opts.MaxResponseSize
	if maxSize <= 0 {
		maxSize = defaultMaxResponseSize
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		}
	}

	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "TInvestAPI",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// a 4xx says nothing about the service health
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.LogWarn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL:         baseURL,
		token:           opts.Token,
		httpClient:      httpClient,
		rateLimiter:     rate.NewLimiter(rate.Limit(limit), int(limit)+1),
		circuitBreaker:  circuitBreaker,
		maxResponseSize: maxSize,
	}
}

// Call invokes "<Service>/<Method>" with a JSON body and decodes the JSON reply into out.
func (c *Client) Call(ctx context.Context, method string, in, out interface{}) error {
	body, err := c.MakeRequest(ctx, http.MethodPost, servicePrefix+method, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// MakeRequest sends one request through the rate limiter and circuit breaker.
func (c *Client) MakeRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	requestID := log.GenerateRequestID()
	startTime := time.Now()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	result, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.do(ctx, requestID, method, endpoint, body, startTime)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.LogWarn("Circuit breaker rejected request",
				zap.String("request_id", requestID),
				zap.String("endpoint", endpoint),
				zap.Error(err))
		}
		return nil, err
	}

	log.LogResponse(requestID, http.StatusOK, time.Since(startTime).Milliseconds(), zap.String("endpoint", endpoint))
	return result.([]byte), nil
}

func (c *Client) do(ctx context.Context, requestID, method, endpoint string, body interface{}, startTime time.Time) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-app-name", "stock-background")

	log.LogRequest(requestID, method, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(respBody)) > c.maxResponseSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", endpoint, c.maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.LogResponse(requestID, resp.StatusCode, time.Since(startTime).Milliseconds(),
			zap.String("endpoint", endpoint),
			zap.String("tracking_id", resp.Header.Get("x-tracking-id")))
		return nil, newAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}
