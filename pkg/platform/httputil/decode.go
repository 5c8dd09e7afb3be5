package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "greenctf/pkg/domain-errors"
)

// DecodeJSON decodes a single JSON object from the request body into T.
// On failure it writes a 400 and returns nil, false. Bodies cut off by
// request.BodyLimit get a distinct message.
//
//	req, ok := httputil.DecodeJSON[models.LoginRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil && dec.More() {
		err = errors.New("unexpected data after JSON object")
	}
	if err == nil {
		return &req, true
	}

	logger.WarnContext(ctx, "failed to decode request body",
		"error", err,
		"request_id", requestID,
	)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Request body too large"))
	case errors.Is(err, io.EOF):
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Request body is required"))
	default:
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "Invalid request body"))
	}
	return nil, false
}
