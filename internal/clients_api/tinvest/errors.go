package tinvest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrInstrumentNotFound - no instrument for ticker + class code
var ErrInstrumentNotFound = errors.New("instrument not found")

// APIError is a non-2xx reply from the gateway.
type APIError struct {
	StatusCode int
	Code       int    // gRPC status code carried in the body
	Message    string // gateway error message, or raw body
}

func (e *APIError) Error() string {
	if e == nil {
		return "tinvest api error: <nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("tinvest api error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("tinvest api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports a 404 or gRPC NOT_FOUND (5).
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == 5
}

type gatewayError struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var ge gatewayError
	if err := json.Unmarshal(body, &ge); err == nil && (ge.Message != "" || ge.Description != "") {
		apiErr.Code = ge.Code
		apiErr.Message = ge.Message
		if ge.Description != "" {
			apiErr.Message = ge.Message + ": " + ge.Description
		}
		return apiErr
	}

	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200]
	}
	apiErr.Message = preview
	return apiErr
}
