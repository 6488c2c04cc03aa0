// Package web provides an HTTP status server for the brew-monitor daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/brew-monitor/internal/paddle"
	"github.com/sweeney/brew-monitor/internal/status"
)

// Overrider forwards a relay override to the paddle controller.
type Overrider interface {
	SendOverride(ctx context.Context, value string) error
}

// Moder switches the paddle controller between AUTO and MANUAL.
type Moder interface {
	SetMode(ctx context.Context, mode string) error
}

// overrideTimeout bounds a POST /override or /mode round trip to the controller.
const overrideTimeout = 2 * time.Second

// Server serves the status page, live feed and metrics over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	overrider  Overrider
	moder      Moder
	push       time.Duration
}

// New creates a Server that reads state from the given tracker.
// overrider and moder may be nil, in which case POST /override and
// POST /mode answer 503.
// push is how often websocket clients are checked for new state.
func New(addr string, tracker *status.Tracker, overrider Overrider, moder Moder, push time.Duration) *Server {
	if push <= 0 {
		push = 200 * time.Millisecond
	}
	s := &Server{tracker: tracker, overrider: overrider, moder: moder, push: push}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/override", sameOriginOnly(s.handleOverride)).Methods(http.MethodPost)
	r.Handle("/mode", sameOriginOnly(s.handleMode)).Methods(http.MethodPost)
	return r
}

// sameOrigin reports whether a request was sent by a page served from this
// host. Requests without browser origin headers (curl, scripts) pass.
func sameOrigin(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return false
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// sameOriginOnly rejects cross-origin requests to the controller endpoints.
func sameOriginOnly(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sameOrigin(r) {
			log.Printf("web: refused %s %s from origin %q", r.Method, r.URL.Path, r.Header.Get("Origin"))
			writeOverride(w, http.StatusForbidden, OverrideResponse{Error: "cross-origin request refused"})
			return
		}
		next(w, r)
	})
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// OverrideResponse is the JSON body returned by POST /override and POST /mode.
type OverrideResponse struct {
	Override string `json:"override,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeOverride(w http.ResponseWriter, code int, resp OverrideResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	value := r.FormValue("set")
	switch value {
	case paddle.OverrideOn, paddle.OverrideOff, paddle.OverrideNone:
	default:
		writeOverride(w, http.StatusBadRequest, OverrideResponse{Error: "set must be 1, 0 or off"})
		return
	}
	if s.overrider == nil {
		writeOverride(w, http.StatusServiceUnavailable, OverrideResponse{Error: "no paddle controller configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), overrideTimeout)
	defer cancel()
	if err := s.overrider.SendOverride(ctx, value); err != nil {
		log.Printf("web: override %s: %v", value, err)
		code := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		writeOverride(w, code, OverrideResponse{Error: err.Error()})
		return
	}
	log.Printf("web: override set to %s", value)
	writeOverride(w, http.StatusOK, OverrideResponse{Override: value})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	mode, err := paddle.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeOverride(w, http.StatusBadRequest, OverrideResponse{Error: "mode must be AUTO or MANUAL"})
		return
	}
	if s.moder == nil {
		writeOverride(w, http.StatusServiceUnavailable, OverrideResponse{Error: "no paddle controller configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), overrideTimeout)
	defer cancel()
	if err := s.moder.SetMode(ctx, mode); err != nil {
		log.Printf("web: mode %s: %v", mode, err)
		writeOverride(w, http.StatusBadGateway, OverrideResponse{Error: err.Error()})
		return
	}
	log.Printf("web: mode set to %s", mode)
	writeOverride(w, http.StatusOK, OverrideResponse{Mode: mode})
}
