package httpapi

import (
	"net/http"
	"strings"

	"hnjobs-engine/internal/config"
	"hnjobs-engine/internal/engine"
	"hnjobs-engine/internal/store"
)

type PostingsHandler struct {
	Engine *engine.Engine
	Cfg    config.Config
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type postingsPage struct {
	Postings   []store.Posting `json:"postings"`
	Pagination pagination      `json:"pagination"`
}

// List serves GET /postings. Unfiltered requests within the snapshot's reach
// read the cached snapshot and paginate it in memory; filtered requests and
// pages beyond the snapshot go to the store.
func (h PostingsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", h.Cfg.API.DefaultPageSize)
	if limit > h.Cfg.API.MaxPageSize {
		limit = h.Cfg.API.MaxPageSize
	}

	opts := store.QueryOpts{
		Search:   strings.TrimSpace(q.Get("search")),
		Company:  strings.TrimSpace(q.Get("company")),
		Location: strings.TrimSpace(q.Get("location")),
		NewOnly:  queryBool(r, "new_only"),
		Page:     page,
		Limit:    limit,
		MaxLimit: h.Cfg.API.MaxPageSize,
	}

	if unfiltered(opts) {
		snapshot, total, err := h.Engine.Snapshot(r.Context())
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
		// the snapshot is capped; windows that run past its tail fall
		// through to the store so every page stays reachable
		if page*limit <= len(snapshot) || total == len(snapshot) {
			writeJSON(w, http.StatusOK, postingsPage{
				Postings:   paginate(snapshot, page, limit),
				Pagination: makePagination(page, limit, total),
			})
			return
		}
	}

	postings, total, err := h.Engine.Query(r.Context(), opts)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if postings == nil {
		postings = []store.Posting{}
	}
	writeJSON(w, http.StatusOK, postingsPage{
		Postings:   postings,
		Pagination: makePagination(page, limit, total),
	})
}

// New serves GET /postings/new: only the most recent cycle's inserts.
func (h PostingsHandler) New(w http.ResponseWriter, r *http.Request) {
	postings, _, err := h.Engine.Query(r.Context(), store.QueryOpts{
		NewOnly:  true,
		Page:     1,
		Limit:    h.Cfg.API.MaxPageSize,
		MaxLimit: h.Cfg.API.MaxPageSize,
	})
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if postings == nil {
		postings = []store.Posting{}
	}
	writeJSON(w, http.StatusOK, postings)
}

// Search serves GET /postings/search?q= across title, company, and location.
func (h PostingsHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_query", "query parameter 'q' is required")
		return
	}

	postings, _, err := h.Engine.Query(r.Context(), store.QueryOpts{
		Search:   query,
		Page:     1,
		Limit:    h.Cfg.API.SearchResultCap,
		MaxLimit: h.Cfg.API.SearchResultCap,
	})
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if postings == nil {
		postings = []store.Posting{}
	}
	writeJSON(w, http.StatusOK, postings)
}

func unfiltered(opts store.QueryOpts) bool {
	return opts.Search == "" && opts.Company == "" && opts.Location == "" && !opts.NewOnly
}

func paginate(all []store.Posting, page, limit int) []store.Posting {
	start := (page - 1) * limit
	if start >= len(all) {
		return []store.Posting{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func makePagination(page, limit, total int) pagination {
	return pagination{
		Page:  page,
		Limit: limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}
}
