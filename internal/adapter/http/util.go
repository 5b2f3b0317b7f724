package adapthttp

import (
	"fmt"
	"net/http"
	"strconv"

	"movierec/internal/domain"
	"movierec/internal/logging"
	"movierec/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// maxBodyBytes caps request bodies; every payload here is a few hundred bytes.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail reports err as the structured error contract: validation problems are
// itemized, anything else becomes a generic operation-scoped 400.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if verrs, ok := validation.As(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": verrs})
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusBadRequest, "Error in "+op)
}

func parseJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// pageQuery reads filter, pageNumber and pageSize. A zero page size lets the
// service apply its default.
func pageQuery(r *http.Request, status domain.Status) domain.MovieQuery {
	return domain.MovieQuery{
		Status:     status,
		Filter:     r.URL.Query().Get("filter"),
		PageNumber: intQuery(r, "pageNumber", 0),
		PageSize:   intQuery(r, "pageSize", 0),
	}
}

func idParam(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return id, nil
}
