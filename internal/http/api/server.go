package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/shadowscan/shadowscan/internal/collectors/registry"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h *Handlers
	e *echo.Echo

	mu  sync.Mutex
	srv *http.Server
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(orgID uuid.UUID, st InventoryStore, runner DiscoveryRunner, reg *registry.CollectorRegistry) *EchoServer {
	h := &Handlers{OrgID: orgID, Store: st, Runner: runner, Registry: reg}
	es := &EchoServer{h: h, e: echo.New()}
	es.registerRoutes()
	return es
}

func (es *EchoServer) registerRoutes() {
	es.e.GET("/healthz", es.h.HandleHealthz)

	api := es.e.Group("/api")
	api.GET("/automations", es.h.HandleListAutomations)
	api.GET("/automations/:platform/*", es.h.HandleGetAutomation)
	api.POST("/discovery/run", es.h.HandleRunDiscovery)
	api.GET("/discovery/runs/latest", es.h.HandleLatestRun)
	api.GET("/connectors", es.h.HandleListConnectors)
	api.PUT("/connectors/:platform", es.h.HandleSetConnector)
}

// Start starts the HTTP server.
func (es *EchoServer) Start(addr string) error {
	return es.e.Start(addr)
}

// StartServer starts the HTTP server with a custom http.Server.
func (es *EchoServer) StartServer(server *http.Server) error {
	server.Handler = es.e
	es.mu.Lock()
	es.srv = server
	es.mu.Unlock()
	return server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (es *EchoServer) Shutdown(ctx context.Context) error {
	es.mu.Lock()
	srv := es.srv
	es.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
