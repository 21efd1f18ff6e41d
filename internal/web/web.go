package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/johnstcn/freshfiction/internal/store"
)

type api struct {
	*mux.Router
	store store.ReadStore
	log   *slog.Logger
}

type Deps struct {
	Router *mux.Router
	Store  store.ReadStore
	Logger *slog.Logger
}

// Response is the envelope of every API response.
type Response struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func New(deps Deps) *api {
	r := deps.Router
	if r == nil {
		r = mux.NewRouter()
	}
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a := &api{
		Router: r,
		store:  deps.Store,
		log:    log.With("component", "web"),
	}

	a.Use(a.logRequests)
	a.HandleFunc("/api/stories", a.listStories).Methods(http.MethodGet)
	a.HandleFunc("/api/stories/{id}/history", a.storyHistory).Methods(http.MethodGet)
	a.HandleFunc("/api/history", a.history).Methods(http.MethodGet)
	a.HandleFunc("/api/stats", a.stats).Methods(http.MethodGet)

	return a
}

func (a *api) listStories(w http.ResponseWriter, r *http.Request) {
	data, err := a.store.GetLatestStories(r.Context())
	a.respond(w, "listStories", data, err)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	data, err := a.store.GetSnapshotHistory(r.Context())
	a.respond(w, "history", data, err)
}

func (a *api) storyHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		a.write(w, "storyHistory", http.StatusBadRequest, Response{Error: "invalid story id"})
		return
	}
	data, err := a.store.GetStoryHistory(r.Context(), id)
	a.respond(w, "storyHistory", data, err)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	data, err := a.store.GetStats(r.Context())
	a.respond(w, "stats", data, err)
}

func (a *api) respond(w http.ResponseWriter, handler string, data interface{}, err error) {
	switch {
	case errors.Is(err, store.ErrStoryNotFound):
		a.write(w, handler, http.StatusNotFound, Response{Error: err.Error()})
	case err != nil:
		a.log.Error("get data from store", "err", err, "handler", handler)
		a.write(w, handler, http.StatusInternalServerError, Response{Error: err.Error()})
	default:
		a.write(w, handler, http.StatusOK, Response{Data: data})
	}
}

func (a *api) write(w http.ResponseWriter, handler string, code int, resp Response) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		a.log.Error("write response", "err", err, "handler", handler)
	}
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		a.log.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
