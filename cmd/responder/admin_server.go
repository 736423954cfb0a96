package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"replyflow/internal/resilience/circuitbreaker"
	"replyflow/internal/usecase/workflow"
)

// healthResponse is the liveness probe body.
type healthResponse struct {
	Status  string `json:"status"`
	Polling bool   `json:"polling"`
}

// pendingResponse describes the draft awaiting a decision, if any.
type pendingResponse struct {
	Pending       bool    `json:"pending"`
	CommentID     string  `json:"comment_id,omitempty"`
	CommenterName string  `json:"commenter_name,omitempty"`
	CommentText   string  `json:"comment_text,omitempty"`
	ResponseText  string  `json:"response_text,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// decisionResponse is returned by the approve and reject endpoints.
type decisionResponse struct {
	Handled bool `json:"handled"`
}

// startAdminServer starts the operations HTTP server in a goroutine. It
// exposes Prometheus metrics, a liveness probe, and the manual approval
// endpoints:
//
//	GET  /metrics         - Prometheus metrics
//	GET  /health          - liveness probe with polling state
//	GET  /pending         - the draft awaiting approval, if any
//	POST /approve         - post the pending draft
//	POST /reject          - discard the pending draft
//	GET  /breakers        - circuit breaker state snapshot
//	POST /breakers/reset  - force all breakers closed
//
// The server shuts down gracefully when ctx is canceled.
func startAdminServer(ctx context.Context, logger *slog.Logger, addr string, orchestrator *workflow.Orchestrator, breakers *circuitbreaker.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Polling: orchestrator.IsPolling(),
		})
	})

	mux.HandleFunc("/pending", func(w http.ResponseWriter, r *http.Request) {
		item := orchestrator.Pending()
		if item == nil {
			writeJSON(w, http.StatusOK, pendingResponse{Pending: false})
			return
		}
		writeJSON(w, http.StatusOK, pendingResponse{
			Pending:       true,
			CommentID:     item.Comment.ID,
			CommenterName: item.Comment.AuthorName,
			CommentText:   item.Comment.Text,
			ResponseText:  item.Response.Text,
			Confidence:    item.Response.ConfidenceScore,
		})
	})

	mux.HandleFunc("/approve", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Handled: orchestrator.Approve(r.Context())})
	})

	mux.HandleFunc("/reject", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Handled: orchestrator.Reject()})
	})

	mux.HandleFunc("/breakers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(breakers.Status()))
	})

	mux.HandleFunc("/breakers/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		breakers.ResetAll()
		writeJSON(w, http.StatusOK, decisionResponse{Handled: true})
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("admin server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server failed", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown failed", slog.Any("error", err))
		} else {
			logger.Info("admin server stopped")
		}
	}()

	return server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}
