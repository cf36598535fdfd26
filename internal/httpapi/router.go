package httpapi

import (
	"net/http"

	"hnjobs-engine/internal/config"
	"hnjobs-engine/internal/engine"
	"hnjobs-engine/internal/events"
)

type Deps struct {
	Engine *engine.Engine
	Hub    *events.Hub
	Cfg    config.Config
}

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	reads := NewClientLimiter(float64(d.Cfg.API.RequestsPerMin)/60.0, d.Cfg.API.Burst)
	// on-demand refreshes hit the source site; keep them scarce
	refreshes := NewClientLimiter(10.0/3600.0, 2)

	ph := PostingsHandler{Engine: d.Engine, Cfg: d.Cfg}
	mux.HandleFunc("/postings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rateLimited(reads, ph.List),
	}))
	mux.HandleFunc("/postings/new", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rateLimited(reads, ph.New),
	}))
	mux.HandleFunc("/postings/search", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rateLimited(reads, ph.Search),
	}))

	rh := RefreshHandler{Engine: d.Engine}
	mux.HandleFunc("/refresh/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rateLimited(refreshes, rh.Run),
	}))
	mux.HandleFunc("/refresh/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Status,
	}))

	mh := MetaHandler{Engine: d.Engine}
	mux.HandleFunc("/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rateLimited(reads, mh.Stats),
	}))
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: mh.Health,
	}))
	mux.HandleFunc("/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: mh.Home,
	}))

	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	return mux
}
