// Package api provides the JSON response envelope and request decoding
// shared by all HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"remitgate/internal/gateway"
)

// Response is the standard API response envelope
type Response[T any] struct {
	Data  T      `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error represents an API error
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Common error codes
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeUnprocessable     = "UNPROCESSABLE"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteData writes a successful data response
func WriteData[T any](w http.ResponseWriter, status int, data T) {
	WriteJSON(w, status, Response[T]{Data: data})
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Response[any]{
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}

// WriteGatewayError maps a gateway taxonomy error onto the HTTP surface:
// validation 400, not-found 404, processing/refund/webhook 422,
// authentication 401, rate-limit 429, everything else 500.
func WriteGatewayError(w http.ResponseWriter, err error) {
	switch gateway.KindOf(err) {
	case gateway.KindValidation:
		WriteError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case gateway.KindPaymentNotFound:
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case gateway.KindInsufficientFunds:
		WriteError(w, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, err.Error())
	case gateway.KindPaymentProcessing, gateway.KindRefund, gateway.KindWebhook:
		WriteError(w, http.StatusUnprocessableEntity, ErrCodeUnprocessable, err.Error())
	case gateway.KindAuthentication:
		WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	case gateway.KindRateLimit:
		WriteError(w, http.StatusTooManyRequests, ErrCodeRateLimited, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "An unexpected error occurred")
	}
}

// BadRequest writes a 400 response
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound writes a 404 response
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// InternalError writes a 500 response
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ValidationError writes a 400 response with per-field details
func ValidationError(w http.ResponseWriter, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make(map[string]string)
		for _, e := range validationErrors {
			details[e.Field()] = formatValidationError(e)
		}
		WriteJSON(w, http.StatusBadRequest, Response[any]{
			Error: &Error{
				Code:    ErrCodeValidation,
				Message: "Validation failed",
				Details: details,
			},
		})
		return
	}
	WriteError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Must be a valid email address"
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	default:
		return "Invalid value"
	}
}

// Validate is a shared validator instance
var Validate = validator.New()

// DecodeAndValidate decodes JSON and validates the result
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return Validate.Struct(v)
}
