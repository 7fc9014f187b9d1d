package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/amr0ny/bc-parser/service/db"
	"github.com/amr0ny/bc-parser/service/record"
	"github.com/amr0ny/bc-parser/service/worker"
)

const (
	minAccountLength = 2
	maxAccountLength = 64
)

// NEAR account IDs: lowercase alphanumeric parts joined by '-', '_' or '.'.
var validAccountRegex = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// handleListRecords returns a handler that lists the cached records in report order.
// GET /api/v1/records
func handleListRecords(store RecordStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recs, err := store.List(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list records", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []*record.Record{}
		}

		logger.DebugContext(r.Context(), "records listed", "count", len(recs))
		writeJSON(w, recordsResponse{Records: recs, Count: len(recs)}, http.StatusOK)
	})
}

// handleGetRecord returns a handler that retrieves one cached record.
// GET /api/v1/records/{name}
func handleGetRecord(store RecordStore, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := validateAccount(name); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec, err := store.Get(r.Context(), name)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, "record not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to get record", "name", name, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, rec, http.StatusOK)
	})
}

// handleLocate returns a handler that runs a live lookup without touching the cache.
// GET /api/v1/locate/{account}?claim_period=N
func handleLocate(locator worker.Locator, contractName string, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if locator == nil {
			writeError(w, "live lookup is not enabled", http.StatusServiceUnavailable)
			return
		}

		account := r.PathValue("account")
		if err := validateAccount(account); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		rec := locator.Locate(r.Context(), account, contractName, r.URL.Query().Get("claim_period"))
		logger.InfoContext(r.Context(), "live lookup", "account", account, "found", !rec.IsPlaceholder())
		writeJSON(w, locateResponse{Record: rec, Found: rec.Hash != nil}, http.StatusOK)
	})
}

// handleStatus returns a handler that reports cache size and runner state.
// GET /api/v1/status
func handleStatus(store RecordStore, status StatusProvider, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := store.Count(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to count records", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := statusResponse{CachedRecords: n}
		if status != nil {
			st := status.Status()
			resp.Runner = &st
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

type recordsResponse struct {
	Records []*record.Record `json:"records"`
	Count   int              `json:"count"`
}

type locateResponse struct {
	Record *record.Record `json:"record"`
	Found  bool           `json:"found"`
}

type statusResponse struct {
	CachedRecords int64          `json:"cached_records"`
	Runner        *worker.Status `json:"runner,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAccount validates a NEAR account ID taken from the URL path.
func validateAccount(account string) error {
	if account == "" {
		return errorf("account is required")
	}

	if len(account) < minAccountLength || len(account) > maxAccountLength {
		return errorf("account must be between %d and %d characters", minAccountLength, maxAccountLength)
	}

	for _, r := range account {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in account: control characters not allowed")
		}
	}

	if !validAccountRegex.MatchString(account) {
		return errorf("invalid account format: must be lowercase alphanumeric parts separated by '.', '-' or '_'")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
