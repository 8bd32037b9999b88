package node

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"
)

// Pinger is anything a health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer provides HTTP health and status endpoints for a node.
type HealthServer struct {
	node   *Node
	cache  Pinger // nil when no remote cache is configured
	local  Pinger
	addr   string
	server *http.Server
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	SQLite string `json:"sqlite,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a health server for node listening on addr.
func NewHealthServer(node *Node, local, cache Pinger, addr string) *HealthServer {
	return &HealthServer{
		node:  node,
		cache: cache,
		local: local,
		addr:  addr,
	}
}

// Handler returns the server's routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	mux.HandleFunc("/status", h.statusHandler)
	return mux
}

// Start binds addr and serves in the background.
func (h *HealthServer) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}

	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[Health] Server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the health server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz.
// Returns 200 when the local store and, if configured, Redis respond.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy"}
	code := http.StatusOK

	if h.local != nil {
		if err := h.local.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.SQLite = "unavailable"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			response.SQLite = "ok"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Redis = "disconnected"
			if response.Error == "" {
				response.Error = err.Error()
			}
			code = http.StatusServiceUnavailable
		} else {
			response.Redis = "connected"
		}
	}

	writeJSON(w, code, response)
}

// statusHandler handles GET /status with the node's snapshot.
func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.node.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
