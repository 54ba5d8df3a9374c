// Package server exposes conversation runs over HTTP.
//
// Information Hiding:
// - Route table and request decoding hidden
// - Event framing delegated to stream.Writer
// - Client disconnects turned into context cancellation of the run

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/richinex/weaver/agent"
	"github.com/richinex/weaver/model"
	"github.com/richinex/weaver/stream"
)

// DefaultMaxRequestBytes bounds the size of a posted conversation.
const DefaultMaxRequestBytes = 4 << 20

// StreamRequest is the body of POST /api/stream.
type StreamRequest struct {
	Messages []model.Message `json:"messages"`
}

// Server serves the conversation endpoints.
type Server struct {
	agent           *agent.Agent
	logger          *slog.Logger
	maxRequestBytes int64
}

// New creates a server that runs conversations on a.
func New(a *agent.Agent, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		agent:           a,
		logger:          logger,
		maxRequestBytes: DefaultMaxRequestBytes,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/stream", s.handleStream)
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down,
// giving in-flight runs a few seconds to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	body := http.MaxBytesReader(w, r.Body, s.maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	sw := stream.NewWriter(w)
	w.WriteHeader(http.StatusOK)
	sw.Flush()

	var sent int
	for evt := range s.agent.Run(r.Context(), req.Messages) {
		if err := sw.Send(evt); err != nil {
			s.logger.Warn("client write failed", "error", err, "events", sent)
			return
		}
		sent++
	}
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.agent.Registry().Catalog()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": s.agent.Provider().Name(),
		"model":    s.agent.Provider().Model(),
	})
}

// logRequests records method, path and duration of every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
