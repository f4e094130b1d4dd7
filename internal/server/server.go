// Package server exposes the fleet engine over an HTTP API. Handlers
// translate domain errors into status codes and otherwise stay thin;
// all decisions live in the engine and its collaborators.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"fleetd/internal/domain"
	"fleetd/internal/engine"
	"fleetd/internal/inventory"
	"fleetd/internal/ledger"
	"fleetd/internal/storage"
)

// Notifier re-dispatches an alert to the configured channels.
type Notifier interface {
	Dispatch(ctx context.Context, alertID string) error
}

// Server holds the handler dependencies.
type Server struct {
	engine   *engine.Engine
	store    *inventory.Store
	ledger   *ledger.Ledger
	alloc    *storage.Allocator
	notifier Notifier
	log      *logrus.Entry
}

// New builds a server. notifier may be nil when no channels are
// configured; the re-dispatch endpoint then returns 503.
func New(eng *engine.Engine, store *inventory.Store, led *ledger.Ledger,
	alloc *storage.Allocator, notifier Notifier, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		engine:   eng,
		store:    store,
		ledger:   led,
		alloc:    alloc,
		notifier: notifier,
		log:      log,
	}
}

// Router assembles the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.GET("/pool", s.getPool)
		api.GET("/fleet/health", s.getFleetHealth)

		api.GET("/baremetals", s.listBaremetals)
		api.POST("/baremetals", s.createBaremetal)
		api.GET("/baremetals/:id", s.getBaremetal)
		api.DELETE("/baremetals/:id", s.deleteBaremetal)
		api.PUT("/baremetals/:id/status", s.setBaremetalStatus)

		api.GET("/vms", s.listVMs)
		api.POST("/vms", s.createVM)
		api.GET("/vms/:id", s.getVM)
		api.DELETE("/vms/:id", s.deleteVM)
		api.POST("/vms/:id/stop", s.stopVM)
		api.POST("/vms/:id/start", s.startVM)

		api.GET("/images", s.listImages)
		api.POST("/images", s.createImage)

		api.GET("/alerts", s.listAlerts)
		api.GET("/alerts/:id", s.getAlert)
		api.POST("/alerts/:id/resolve", s.resolveAlert)
		api.POST("/alerts/:id/dispatch", s.dispatchAlert)
		api.GET("/alerts/:id/notifications", s.listNotifications)

		api.GET("/storage", s.getStorageUsage)
	}
	return r
}

// Run serves the API until ctx is cancelled, then shuts down with a
// short grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", addr).Info("api listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// fail maps a domain error onto an HTTP status and writes the JSON
// error body.
func (s *Server) fail(c *gin.Context, err error) {
	var verr *domain.ValidationError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrShrinkUnsupported):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientCapacity),
		errors.Is(err, domain.ErrNoEligibleNode),
		errors.Is(err, domain.ErrConcurrentModification):
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	c.JSON(code, gin.H{"error": err.Error()})
}
