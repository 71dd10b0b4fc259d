// Package api exposes the dashboard's HTTP surface: the SSE event stream the
// display client subscribes to, and the control endpoints that drive view
// selection, filtering, background jobs, TOTP entry, and document analysis.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"nse-alerts-dashboard/auth"
	"nse-alerts-dashboard/jobs"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
)

// ViewController is the slice of the app controller the API drives: view
// selection, message filtering, and the on-demand data loads.
type ViewController interface {
	SelectView(view string)
	SetFilter(symbol, option string, limit int)
	LoadOrderSheet(ctx context.Context) error
	Analyze(ctx context.Context, filename string, file io.Reader) error
}

// Server handles HTTP requests for the dashboard surface.
type Server struct {
	broker     *realtime.Broker
	controller ViewController
	tracker    *jobs.Tracker
	totp       *auth.TOTPEntry
	guard      *auth.Guard
	notifier   *notify.Notifier

	httpServer *http.Server
}

// NewServer creates the dashboard API server.
func NewServer(broker *realtime.Broker, controller ViewController, tracker *jobs.Tracker, totp *auth.TOTPEntry, guard *auth.Guard, notifier *notify.Notifier) *Server {
	return &Server{
		broker:     broker,
		controller: controller,
		tracker:    tracker,
		totp:       totp,
		guard:      guard,
		notifier:   notifier,
	}
}

// Start starts the HTTP server on the given address. It blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	log.Printf("🚀 Dashboard surface listening on %s", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Handler builds the routed HTTP handler the server listens with.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /events", s.broker) // SSE endpoint

	mux.HandleFunc("POST /api/view", s.handleSelectView)
	mux.HandleFunc("POST /api/filter", s.handleSetFilter)
	mux.HandleFunc("POST /api/jobs/{kind}", s.handleSubmitJob)
	mux.HandleFunc("POST /api/totp", s.handleTOTP)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/sheet/refresh", s.handleRefreshSheet)
	mux.HandleFunc("GET /api/toasts", s.handleGetToasts)
	mux.HandleFunc("DELETE /api/toasts/{id}", s.handleDismissToast)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.loggingMiddleware(mux)
}

// Shutdown stops the HTTP server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) handleSelectView(w http.ResponseWriter, r *http.Request) {
	var body struct {
		View string `json:"view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	s.controller.SelectView(body.View)
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symbol string `json:"symbol"`
		Option string `json:"option"`
		Limit  int    `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	s.controller.SetFilter(body.Symbol, body.Option, body.Limit)
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	kind := jobs.Kind(r.PathValue("kind"))
	switch kind {
	case jobs.KindGetQuotes, jobs.KindPlaceOrder:
	default:
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("unknown job kind %q", kind), nil)
		return
	}

	jobID, err := s.tracker.Submit(r.Context(), kind)
	if err != nil {
		respondWithError(w, http.StatusConflict, err.Error(), err)
		return
	}
	respondJSON(w, map[string]string{"job_id": jobID})
}

func (s *Server) handleTOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	normalized := s.totp.Input(r.Context(), body.Code)
	respondJSON(w, map[string]interface{}{
		"code":   normalized,
		"locked": s.totp.Locked(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.guard.Logout(r.Context())
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "missing file upload", err)
		return
	}
	defer file.Close()

	if err := s.controller.Analyze(r.Context(), header.Filename, file); err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error(), err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleRefreshSheet(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.LoadOrderSheet(r.Context()); err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error(), err)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleGetToasts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.notifier.Active())
}

func (s *Server) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.notifier.Dismiss(id) {
		respondWithError(w, http.StatusNotFound, "toast not found", nil)
		return
	}
	respondJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// respondWithError logs the error and sends a plain error response, keeping
// internal details out of the body.
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		log.Printf("API Error [%d]: %s - %v", code, message, err)
	} else {
		log.Printf("API Error [%d]: %s", code, message)
	}
	http.Error(w, message, code)
}
