package httputil

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/platinummonkey/spendwise/pkg/observability"
)

// Envelope is the body shape of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

var detailedErrors atomic.Bool

// SetDetailedErrors controls whether WriteInternalError includes the
// underlying error text in the message field. Enabled in development only.
func SetDetailedErrors(enabled bool) {
	detailedErrors.Store(enabled)
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteSuccess writes a 200 envelope carrying data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteCreated writes a 201 envelope carrying data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// WriteSuccessMessage writes a 200 envelope with a message and optional data
func WriteSuccessMessage(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// WriteErrorMessage writes a failure envelope with the given status code
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: false, Error: message})
}

// WriteError writes a failure envelope using the error text as message
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteValidationError writes a validation error response (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteServiceUnavailable writes a service unavailable error (503)
func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusServiceUnavailable, message)
}

// WriteInternalError writes a 500 envelope with a public message. The
// underlying error is attached as message only when detailed errors are on.
func WriteInternalError(w http.ResponseWriter, publicMsg string, err error) {
	env := Envelope{Success: false, Error: publicMsg}
	if err != nil && detailedErrors.Load() {
		env.Message = err.Error()
	}
	WriteJSON(w, http.StatusInternalServerError, env)
}

// LogAndWriteInternalError logs err through the request logger before
// writing a 500 envelope.
func LogAndWriteInternalError(w http.ResponseWriter, r *http.Request, publicMsg string, err error) {
	ctx := r.Context()
	observability.UpdateLoggerWithTraceContext(ctx, observability.FromContext(ctx)).
		WithError(err).Error(publicMsg)
	WriteInternalError(w, publicMsg, err)
}
