package httpapi

import (
	"errors"
	"net/http"

	"hnjobs-engine/internal/engine"
	"hnjobs-engine/internal/fetch"
	"hnjobs-engine/internal/store"
)

type RefreshHandler struct {
	Engine *engine.Engine
}

// Run serves POST /refresh/run. The cycle executes synchronously under the
// request context, so a client timeout aborts the fetch without leaving a
// half-committed batch behind.
func (h RefreshHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Engine.RunRefreshCycle(r.Context())
	if err != nil {
		var fe *fetch.FetchError
		var se *store.StoreError
		switch {
		case errors.Is(err, engine.ErrRefreshRunning):
			WriteError(w, r, http.StatusConflict, "refresh_running", err.Error())
		case errors.As(err, &fe):
			WriteError(w, r, http.StatusBadGateway, "fetch_failed", err.Error())
		case errors.As(err, &se):
			WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		default:
			WriteError(w, r, http.StatusInternalServerError, "refresh_failed", err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":       "postings refreshed",
		"total_scraped": summary.Scraped,
		"new_postings":  summary.New,
	})
}

// Status serves GET /refresh/status.
func (h RefreshHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Status())
}
