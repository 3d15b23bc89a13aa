// Package http provides the JSON API server and its handlers.
//
// This file implements the builder used for every JSON response, including
// the mapping from domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"pocketbook/internal/adapters"
	"pocketbook/internal/core"
)

// ErrMalformedRequest marks a request body or parameter that could not be
// decoded.
var ErrMalformedRequest = errors.New("malformed request")

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response. A nil body sends headers only.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message).Header("WWW-Authenticate", "Bearer")
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func TooManyRequestsError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, message)
}

// InternalServerError never carries error detail.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal error")
}

var notFoundErrors = []error{
	core.ErrAccountNotFound,
	core.ErrTransactionNotFound,
	core.ErrGoalNotFound,
	core.ErrUserNotFound,
	adapters.ErrUnknownTool,
}

// statusFor maps an error onto a response status.
func statusFor(err error) int {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	if core.IsValidation(err) || errors.Is(err, ErrMalformedRequest) {
		return http.StatusBadRequest
	}
	if errors.Is(err, errUnauthenticated) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// FromError builds the error response for err. Only client errors expose
// their message.
func FromError(err error) *JSONResponseBuilder {
	switch status := statusFor(err); status {
	case http.StatusInternalServerError:
		return InternalServerError()
	case http.StatusUnauthorized:
		return UnauthorizedError(err.Error())
	default:
		return ErrorResponse(status, err.Error())
	}
}
