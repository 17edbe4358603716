// Package routes wires the public HTTP surface of the API.
package routes

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"

	"github.com/raidtools/gamedata-api/internal/cache"
	appmw "github.com/raidtools/gamedata-api/internal/http/middleware"
	"github.com/raidtools/gamedata-api/internal/proxy"
	"github.com/raidtools/gamedata-api/internal/registry"
	"github.com/raidtools/gamedata-api/internal/version"
)

type Server struct {
	Router *chi.Mux
	Proxy  *proxy.Service
	Types  *registry.Registry

	// Source links the dataset repository in the API info payload.
	Source string
}

type ServerOptions struct {
	Proxy  *proxy.Service
	Types  *registry.Registry
	Source string
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.StripSlashes)
	r.Use(appmw.RequestID)
	r.Use(appmw.Recover)
	r.Use(appmw.Metrics)
	r.Use(appmw.Headers)

	s := &Server{Router: r, Proxy: opts.Proxy, Types: opts.Types, Source: opts.Source}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/", s.handleInfo)
	r.Get("/v1", s.handleInfo)
	r.Get("/v1/{type:[a-zA-Z-]+}", s.handleType)
	r.Get("/v1/{type:[a-zA-Z-]+}/{id:[a-z0-9_-]+}", s.handleItem)

	return s
}

type apiInfo struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Source    string   `json:"source"`
	Endpoints []string `json:"endpoints"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	endpoints := make([]string, 0)
	for _, name := range s.Types.SingleFileNames() {
		endpoints = append(endpoints, "/v1/"+name)
	}
	for _, name := range s.Types.CollectionNames() {
		endpoints = append(endpoints, "/v1/"+name, "/v1/"+name+"/{id}")
	}
	sort.Strings(endpoints)

	s.respondJSON(w, r, http.StatusOK, apiInfo{
		Name:      "gamedata-api",
		Version:   version.Version,
		Source:    s.Source,
		Endpoints: endpoints,
	})
}

func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "type")
	rt, ok := s.Types.Resolve(name)
	if !ok {
		s.respondError(w, r, proxy.NewUnknownType(name))
		return
	}

	if !rt.IsCollection() {
		entry, err := s.Proxy.File(r.Context(), name)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		s.respondEntry(w, r, entry)
		return
	}

	entry, err := s.Proxy.Collection(r.Context(), name, parseListQuery(r.URL.Query()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondEntry(w, r, entry)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "type")
	id := chi.URLParam(r, "id")

	entry, err := s.Proxy.Item(r.Context(), name, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondEntry(w, r, entry)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusNotFound, errorEnvelope{Error: "Not found"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusMethodNotAllowed, errorEnvelope{Error: "Method not allowed"})
}

// parseListQuery reads full, limit and offset from the query string.
// Unparseable values fall back to their defaults instead of erroring.
func parseListQuery(q url.Values) proxy.ListQuery {
	var out proxy.ListQuery
	if v := q.Get("full"); v != "" {
		if full, err := strconv.ParseBool(v); err == nil {
			out.Full = full
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.Offset = n
		}
	}
	return out
}

// respondEntry writes a cached or freshly rendered payload, carrying
// over the headers stored with it.
func (s *Server) respondEntry(w http.ResponseWriter, r *http.Request, entry *cache.Entry) {
	for k, v := range entry.Header {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(entry.Body); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("write response failed")
	}
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// respondError maps any failure onto the client error contract. Causes
// of upstream and internal failures are logged; plain not-founds log
// at debug.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *proxy.Error
	if !errors.As(err, &perr) {
		perr = proxy.NewInternal(err)
	}
	evt := hlog.FromRequest(r).Debug()
	if perr.Status() >= 500 || perr.Kind == proxy.KindUpstreamFailure || perr.Kind == proxy.KindListFailure {
		evt = hlog.FromRequest(r).Error()
	}
	evt.Err(err).Int("status", perr.Status()).Msg("request failed")

	s.respondJSON(w, r, perr.Status(), errorEnvelope{Error: perr.Message()})
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("encode response failed")
	}
}
