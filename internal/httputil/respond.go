// Package httputil writes the {code, message, data} response envelope shared
// by the API handlers and middleware. The numeric code repeats the HTTP
// status; error responses additionally carry a machine-readable error string.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/SilverCare-Net/care_layer/internal/errors"
)

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    interface{}            `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteSuccess writes a success envelope with the given payload.
func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, envelope{Code: status, Message: "success", Data: data})
}

// WriteErrorResponse writes an error envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	write(w, status, envelope{Code: status, Message: message, Error: code, Details: details})
}

// WriteServiceError maps any error onto the envelope. Errors that are not a
// ServiceError become 500 internal_error with the message echoed.
func WriteServiceError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal(err.Error(), err)
	}
	WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// Unauthorized writes a 401 envelope with an optional message.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "authentication required"
	}
	WriteErrorResponse(w, http.StatusUnauthorized, string(errors.CodeUnauthorized), message, nil)
}

func write(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
