package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetd/internal/domain"
)

func (s *Server) getPool(c *gin.Context) {
	pool, err := s.ledger.Current()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pool)
}

// fleetHealth summarises the fleet for operator dashboards: resource
// counts by status plus the number of open alerts.
type fleetHealth struct {
	Baremetals       map[string]int `json:"baremetals"`
	VMs              map[string]int `json:"vms"`
	UnresolvedAlerts int            `json:"unresolved_alerts"`
	Pool             *domain.Pool   `json:"pool"`
}

func (s *Server) getFleetHealth(c *gin.Context) {
	baremetals, err := s.store.ListBaremetals("")
	if err != nil {
		s.fail(c, err)
		return
	}
	vms, err := s.store.ListVMs("")
	if err != nil {
		s.fail(c, err)
		return
	}
	alerts, err := s.store.ListAlerts(true, "")
	if err != nil {
		s.fail(c, err)
		return
	}
	pool, err := s.ledger.Current()
	if err != nil {
		s.fail(c, err)
		return
	}

	health := fleetHealth{
		Baremetals:       map[string]int{},
		VMs:              map[string]int{},
		UnresolvedAlerts: len(alerts),
		Pool:             pool,
	}
	for _, b := range baremetals {
		health.Baremetals[b.Status]++
	}
	for _, vm := range vms {
		health.VMs[vm.Status]++
	}
	c.JSON(http.StatusOK, health)
}

func (s *Server) getStorageUsage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": s.alloc.Usage()})
}
