package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"sei-tracker/internal/domain"
	"sei-tracker/internal/tracker"
)

// Pagination bounds.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps tracker errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tracker.ErrInvalidKeyFormat):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeTrackerError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

type page struct {
	limit  int
	offset int
}

func parsePage(r *http.Request) (page, error) {
	p := page{limit: DefaultLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return p, fmt.Errorf("invalid limit %q", v)
		}
		p.limit = min(n, MaxLimit)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid offset %q", v)
		}
		p.offset = n
	}
	return p, nil
}

func parseTimeframe(r *http.Request, def domain.Timeframe) (domain.Timeframe, error) {
	return domain.ParseTimeframe(r.URL.Query().Get("timeframe"), def)
}

// listResponse is a paginated slice of history records, newest first.
type listResponse[R any] struct {
	Key       string           `json:"key"`
	Timeframe domain.Timeframe `json:"timeframe"`
	Total     int              `json:"total"`
	Limit     int              `json:"limit"`
	Offset    int              `json:"offset"`
	Items     []R              `json:"items"`
}

// windowed filters history to tf, orders it newest first and applies p.
func windowed[R domain.Timestamped](key string, history []R, tf domain.Timeframe, p page, now time.Time) listResponse[R] {
	items := slices.Clone(domain.Window(history, tf, now))
	slices.Reverse(items)

	total := len(items)
	start := min(p.offset, total)
	end := min(start+p.limit, total)

	return listResponse[R]{
		Key:       key,
		Timeframe: tf,
		Total:     total,
		Limit:     p.limit,
		Offset:    p.offset,
		Items:     items[start:end],
	}
}
