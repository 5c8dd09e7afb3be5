package httputil

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	dErrors "greenctf/pkg/domain-errors"
)

// Response is the envelope every admin endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code, so we ignore encoding errors.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError centralizes domain error translation to HTTP responses.
// Unknown errors never leak their text to the client.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, Response{Message: DefaultMessage(dErrors.CodeInternal)})
		return
	}

	if domainErr.RetryAfter > 0 {
		secs := int64(math.Ceil(domainErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}

	msg := domainErr.Message
	if msg == "" || domainErr.Code == dErrors.CodeInternal {
		msg = DefaultMessage(domainErr.Code)
	}
	WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), Response{Message: msg})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeNoChanges:
		return http.StatusBadRequest
	case dErrors.CodeInvalidCredentials, dErrors.CodeUnauthenticated, dErrors.CodeSessionExpired:
		return http.StatusUnauthorized
	case dErrors.CodeAccountDisabled, dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeAccountLocked:
		return http.StatusLocked
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DefaultMessage is the client-facing text used when an error carries none.
func DefaultMessage(code dErrors.Code) string {
	switch code {
	case dErrors.CodeInvalidInput:
		return "Invalid request"
	case dErrors.CodeRateLimited:
		return "Too many attempts. Please try again later."
	case dErrors.CodeInvalidCredentials:
		return "Invalid credentials"
	case dErrors.CodeAccountLocked:
		return "Account is temporarily locked"
	case dErrors.CodeAccountDisabled:
		return "Account is disabled"
	case dErrors.CodeUnauthenticated:
		return "Not authenticated"
	case dErrors.CodeSessionExpired:
		return "Session expired"
	case dErrors.CodeForbidden:
		return "Insufficient privileges"
	case dErrors.CodeConflict:
		return "Resource already exists"
	case dErrors.CodeNoChanges:
		return "No changes to update"
	case dErrors.CodeNotFound:
		return "Not found"
	case dErrors.CodePersistence:
		return "Service temporarily unavailable"
	default:
		return "Internal server error"
	}
}
