// Package server answers single-point region lookups over HTTP against
// layers loaded once at startup.
package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/locate"
)

// Options configures the HTTP handler.
type Options struct {
	CORSOrigins []string
}

// Server holds the loaded layers. Layers are read-only, so handlers share
// them without locking.
type Server struct {
	layers []batch.Layer
	opts   Options
	log    *zap.Logger
}

// New creates a Server over layers.
func New(layers []batch.Layer, opts Options) *Server {
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		layers: layers,
		opts:   opts,
		log:    zap.L().With(zap.String("component", "server")),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/layers", s.handleLayers)
		r.Get("/locate", s.handleLocate)
	})
	return r
}

// LayerInfo describes a loaded layer.
type LayerInfo struct {
	Name     string `json:"name"`
	Column   string `json:"column"`
	Source   string `json:"source"`
	Polygons int    `json:"polygons"`
	Skipped  int    `json:"skipped"`
}

// LayerResult is the lookup result for one layer.
type LayerResult struct {
	Layer string       `json:"layer"`
	Code  string       `json:"code"`
	Match locate.Match `json:"match"`
}

// LocateResponse is the body of GET /v1/locate.
type LocateResponse struct {
	ID      string        `json:"id,omitempty"`
	Lon     float64       `json:"lon"`
	Lat     float64       `json:"lat"`
	Results []LayerResult `json:"results"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, lo.Map(s.layers, func(l batch.Layer, _ int) LayerInfo {
		return LayerInfo{
			Name:     l.Store.Name(),
			Column:   l.Column,
			Source:   l.Store.Source(),
			Polygons: l.Store.Len(),
			Skipped:  l.Store.Skipped(),
		}
	}))
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lon, err := parseCoord(q.Get("lon"), 180)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lon: "+err.Error())
		return
	}
	lat, err := parseCoord(q.Get("lat"), 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, "lat: "+err.Error())
		return
	}

	layers := s.layers
	if name := q.Get("layer"); name != "" {
		layers = lo.Filter(s.layers, func(l batch.Layer, _ int) bool {
			return l.Column == name || l.Store.Name() == name
		})
		if len(layers) == 0 {
			writeError(w, http.StatusNotFound, "unknown layer "+name)
			return
		}
	}

	p := locate.Point{ID: q.Get("id"), Lon: lon, Lat: lat}
	resp := LocateResponse{ID: p.ID, Lon: lon, Lat: lat, Results: make([]LayerResult, len(layers))}
	for i, l := range layers {
		res := locate.Locate(p, l.Store)
		if res.Match == locate.NearestFallback {
			s.log.Debug("lookup outside every polygon, using nearest",
				zap.String("layer", l.Column), zap.Float64("lon", lon), zap.Float64("lat", lat))
		}
		resp.Results[i] = LayerResult{Layer: l.Column, Code: res.Code, Match: res.Match}
	}
	writeJSON(w, http.StatusOK, resp)
}

type coordError string

func (e coordError) Error() string { return string(e) }

func parseCoord(text string, limit float64) (float64, error) {
	if text == "" {
		return 0, coordError("required")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, coordError("not a number")
	}
	if v < -limit || v > limit {
		return 0, coordError("out of range")
	}
	return v, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
