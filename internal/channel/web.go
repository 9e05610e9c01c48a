// Package channel exposes the pipeline to clients: a websocket endpoint
// for the customer and staff chat UIs, and a small JSON admin API for the
// back office (operator toggle, conversation list, message log).
package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arshadahsan388/ghartek-support/internal/bus"
	"github.com/arshadahsan388/ghartek-support/internal/domain"
	"github.com/arshadahsan388/ghartek-support/internal/metrics"
	"github.com/arshadahsan388/ghartek-support/internal/responder"
	"github.com/arshadahsan388/ghartek-support/internal/store"
)

// Web serves the chat websocket and the admin API on one listener.
type Web struct {
	host      string
	port      int
	authToken string

	store    store.Store
	sync     *responder.Synchronizer
	presence *responder.Tracker
	events   *bus.EventBus
	logger   *slog.Logger

	server *http.Server
	hub    *hub

	metricsEndpoint string
}

type WebConfig struct {
	Host            string
	Port            int
	AuthToken       string
	Store           store.Store
	Sync            *responder.Synchronizer
	Presence        *responder.Tracker
	Events          *bus.EventBus
	Logger          *slog.Logger
	MetricsEndpoint string // empty disables the metrics handler
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	return &Web{
		host:            cfg.Host,
		port:            cfg.Port,
		authToken:       cfg.AuthToken,
		store:           cfg.Store,
		sync:            cfg.Sync,
		presence:        cfg.Presence,
		events:          cfg.Events,
		logger:          cfg.Logger,
		hub:             newHub(cfg.Logger),
		metricsEndpoint: cfg.MetricsEndpoint,
	}
}

func (w *Web) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.handleUpgrade)
	mux.HandleFunc("GET /api/responder", w.withAuth(w.handleGetResponder))
	mux.HandleFunc("PUT /api/responder", w.withAuth(w.handleSetResponder))
	mux.HandleFunc("GET /api/conversations", w.withAuth(w.handleListConversations))
	mux.HandleFunc("GET /api/conversations/{id}/messages", w.withAuth(w.handleListMessages))
	mux.HandleFunc("GET /api/conversations/{id}/presence", w.withAuth(w.handlePresence))
	if w.metricsEndpoint != "" {
		mux.HandleFunc("GET "+w.metricsEndpoint, metrics.Collector.Handler())
	}
	return mux
}

// Start runs the HTTP server until the context is cancelled.
func (w *Web) Start(ctx context.Context) error {
	mux := w.routes()

	w.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", w.host, w.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// New messages (from any writer, the composer included) are pushed to
	// every connected client of that conversation.
	w.events.On(bus.EventMessageCreated, func(ev bus.Event) {
		msg, ok := ev.Payload["message"].(domain.Message)
		if !ok {
			return
		}
		w.hub.broadcast(msg.ConversationID, wsFrame{Type: "message", Message: &msg})
	})

	w.logger.Info("web channel starting", "addr", w.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// withAuth guards admin endpoints with the configured bearer token. An
// empty token leaves the API open (local deployments).
func (w *Web) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if w.authToken != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got == "" {
				got = r.Header.Get("X-Auth-Token")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(w.authToken)) != 1 {
				http.Error(rw, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(rw, r)
	}
}

func (w *Web) handleGetResponder(rw http.ResponseWriter, r *http.Request) {
	enabled, err := w.store.AutoResponderEnabled(r.Context())
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(rw, map[string]bool{"enabled": enabled})
}

func (w *Web) handleSetResponder(rw http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 1<<10)).Decode(&body); err != nil {
		http.Error(rw, "invalid body", http.StatusBadRequest)
		return
	}
	if err := w.store.SetAutoResponderEnabled(r.Context(), body.Enabled); err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	w.logger.Info("auto-responder toggle changed", "enabled", body.Enabled)
	writeJSON(rw, map[string]bool{"enabled": body.Enabled})
}

func (w *Web) handleListConversations(rw http.ResponseWriter, r *http.Request) {
	mds, err := w.store.ListMetadata(r.Context(), 100)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(rw, mds)
}

func (w *Web) handleListMessages(rw http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("id")
	msgs, err := w.store.Messages(r.Context(), convID, 200)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(rw, msgs)
}

func (w *Web) handlePresence(rw http.ResponseWriter, r *http.Request) {
	online, err := w.store.Presence(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(rw, map[string]bool{"online": online})
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		// Too late for an error status; the connection is likely gone.
		return
	}
}
