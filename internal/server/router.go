package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Copycord/console/internal/coordinator"
	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/status"
)

// Router exposes the console's merged view over HTTP so other tooling can
// scrape it.
// Endpoints:
//
//	GET {basePath}/status   merged model + derived flags
//	GET {basePath}/healthz  liveness
//	GET {basePath}/metrics  Prometheus metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	coord    *coordinator.Coordinator
	basePath string
}

// NewRouter constructs a Router with configurable basePath.
func NewRouter(coord *coordinator.Coordinator, basePath string) *Router {
	return &Router{coord: coord, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, coord *coordinator.Coordinator) (*http.Server, error) {
	r := NewRouter(coord, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

type statusResp struct {
	Server           status.ProcessStatus `json:"server"`
	Client           status.ProcessStatus `json:"client"`
	AggregateRunning bool                 `json:"aggregate_running"`
	Locked           bool                 `json:"locked"`
}

type healthResp struct {
	OK bool `json:"ok"`
}

func (r *Router) handleStatus(c *gin.Context) {
	snap, aggregate, locked := r.coord.Snapshot()
	c.JSON(http.StatusOK, statusResp{
		Server:           snap[status.RoleServer],
		Client:           snap[status.RoleClient],
		AggregateRunning: aggregate,
		Locked:           locked,
	})
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, healthResp{OK: true})
}

func sanitizeBase(basePath string) string {
	bp := strings.TrimRight(basePath, "/")
	if bp != "" && !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return bp
}
