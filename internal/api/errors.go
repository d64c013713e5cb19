package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/tackle-shop/internal/models"
)

var (
	errBadRequest   = errors.New("invalid request")
	errBodyTooLarge = errors.New("request body too large")
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "invalid_request"},
	{errBodyTooLarge, http.StatusRequestEntityTooLarge, "body_too_large"},
	{models.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{models.ErrInvalidCursor, http.StatusBadRequest, "invalid_cursor"},
	{models.ErrSessionNotFound, http.StatusUnauthorized, "unauthorized"},
	{models.ErrForbidden, http.StatusForbidden, "forbidden"},
	{models.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{models.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{models.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{models.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{models.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{models.ErrInsufficientStock, http.StatusConflict, "insufficient_stock"},
	{models.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
	{models.ErrStaleState, http.StatusConflict, "stale_state"},
	{models.ErrPersistence, http.StatusServiceUnavailable, "persistence_failure"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// fail maps err to a status and body. Server-side failures are logged and
// their details kept out of the response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		msg = ""
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", "status", status, "error", err)
	}
	writeError(w, status, code, msg)
}

