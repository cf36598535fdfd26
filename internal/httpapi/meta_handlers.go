package httpapi

import (
	"net/http"
	"time"

	"hnjobs-engine/internal/engine"
)

type MetaHandler struct {
	Engine *engine.Engine
}

func (h MetaHandler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"endpoints": map[string]string{
			"postings":        "/postings - list with filters and pagination",
			"postings_new":    "/postings/new - most recent cycle's inserts",
			"postings_search": "/postings/search?q= - cross-field search",
			"refresh":         "/refresh/run - trigger a scrape cycle",
			"refresh_status":  "/refresh/status - last cycle outcome",
			"stats":           "/stats - store statistics",
			"health":          "/health - liveness and db check",
			"events":          "/events - SSE change stream",
		},
	})
}

func (h MetaHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbStatus := "healthy"
	if err := h.Engine.Ping(r.Context()); err != nil {
		dbStatus = "unhealthy"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"database":          dbStatus,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"cache_age_seconds": h.Engine.CacheAgeSeconds(),
	})
}

func (h MetaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Engine.Stats(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_postings":    st.Total,
		"new_postings":      st.NewCount,
		"oldest_fetched_at": st.OldestFetchedAt,
		"newest_fetched_at": st.NewestFetchedAt,
		"cache_age_seconds": h.Engine.CacheAgeSeconds(),
	})
}
