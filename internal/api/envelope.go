package api

import "encoding/json"

// APIError is the structured error half of the response envelope.
type APIError struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
	TraceID string          `json:"traceId,omitempty"`
}

// Meta carries pagination cursors or aggregate values depending on endpoint.
type Meta struct {
	NextPage    *int     `json:"nextPage,omitempty"`
	Total       *int     `json:"total,omitempty"`
	TotalAmount *float64 `json:"totalAmount,omitempty"`
}

// Envelope is the uniform shape of every response from the remote API,
// returned regardless of HTTP status. Exactly one of Data/Error is
// meaningfully populated per the contract.
type Envelope[T any] struct {
	Data  *T        `json:"data"`
	Error *APIError `json:"error"`
	Meta  Meta      `json:"meta"`
}

// Ok reports whether the envelope carries data rather than an error.
func (e Envelope[T]) Ok() bool {
	return e.Error == nil && e.Data != nil
}
