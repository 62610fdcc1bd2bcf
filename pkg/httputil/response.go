// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/apperrors"
	"github.com/platinummonkey/taskcore/pkg/contextkeys"
	"github.com/platinummonkey/taskcore/pkg/observability"
)

// Response is the success envelope wrapping every handler result.
type Response struct {
	Success bool        `json:"success"`
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the failure envelope. TraceID is the request id.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	TraceID   string `json:"traceId,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return writeSuccess(w, http.StatusOK, apperrors.CodeSuccess.DefaultMessage(), data)
}

// WriteSuccessMessage writes a 200 envelope with a custom message.
func WriteSuccessMessage(w http.ResponseWriter, message string, data interface{}) error {
	return writeSuccess(w, http.StatusOK, message, data)
}

// WriteCreated writes a 201 envelope around data.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return writeSuccess(w, http.StatusCreated, "Created", data)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) error {
	return WriteJSON(w, status, Response{
		Success: true,
		Status:  status,
		Code:    string(apperrors.CodeSuccess),
		Message: message,
		Data:    data,
	})
}

// WriteError maps err to its code and writes the error envelope. Errors that
// carry no code become SYS_001 and their text is only logged. Client errors
// log at warn, server errors at error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	status := appErr.Status()
	message := appErr.Message
	if appErr.Code == apperrors.CodeInternal {
		message = apperrors.CodeInternal.DefaultMessage()
	}

	log := observability.FromContext(r.Context(), logrus.StandardLogger()).WithFields(logrus.Fields{
		"code":   appErr.Code,
		"status": status,
		"path":   r.URL.Path,
	})
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	} else {
		log.WithError(err).Warn("Request rejected")
	}

	WriteJSON(w, status, ErrorResponse{
		Success:   false,
		Status:    status,
		Code:      string(appErr.Code),
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
		TraceID:   contextkeys.GetRequestID(r.Context()),
	})
}

// WriteCode writes the envelope for code with its default message.
func WriteCode(w http.ResponseWriter, r *http.Request, code apperrors.Code) {
	WriteError(w, r, apperrors.New(code))
}
