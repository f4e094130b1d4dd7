package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetd/internal/domain"
)

func (s *Server) listAlerts(c *gin.Context) {
	severity := c.Query("severity")
	if severity != "" && !domain.ValidSeverity(severity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity " + severity})
		return
	}
	unresolvedOnly := c.Query("unresolved") == "true"

	alerts, err := s.store.ListAlerts(unresolvedOnly, severity)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": alerts})
}

func (s *Server) getAlert(c *gin.Context) {
	alert, err := s.store.GetAlert(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) resolveAlert(c *gin.Context) {
	if err := s.store.ResolveAlert(c.Param("id"), time.Now().UTC()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// dispatchAlert fans the alert out to the configured channels again.
// Each re-dispatch appends fresh notification rows.
func (s *Server) dispatchAlert(c *gin.Context) {
	if s.notifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no notification channels configured"})
		return
	}
	if err := s.notifier.Dispatch(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "dispatched"})
}

func (s *Server) listNotifications(c *gin.Context) {
	alertID := c.Param("id")
	if _, err := s.store.GetAlert(alertID); err != nil {
		s.fail(c, err)
		return
	}
	notifications, err := s.store.ListNotifications(alertID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": notifications})
}
