package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetd/internal/domain"
)

type createBaremetalRequest struct {
	Hostname  string `json:"hostname" binding:"required"`
	IPAddress string `json:"ip_address" binding:"required"`
	CPUCores  int    `json:"cpu_cores" binding:"required"`
	MemoryGB  int    `json:"memory_gb" binding:"required"`
	StorageGB int    `json:"storage_gb" binding:"required"`
	IOPS      int    `json:"iops"`
	Status    string `json:"status"`
}

func (s *Server) createBaremetal(c *gin.Context) {
	var req createBaremetalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b := &domain.Baremetal{
		Hostname:  req.Hostname,
		IPAddress: req.IPAddress,
		CPUCores:  req.CPUCores,
		MemoryGB:  req.MemoryGB,
		StorageGB: req.StorageGB,
		IOPS:      req.IOPS,
		Status:    req.Status,
	}
	if err := s.engine.AddBaremetal(c.Request.Context(), b); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (s *Server) listBaremetals(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !domain.ValidBaremetalStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + status})
		return
	}
	baremetals, err := s.store.ListBaremetals(status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": baremetals})
}

func (s *Server) getBaremetal(c *gin.Context) {
	b, err := s.store.GetBaremetal(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBaremetal(c *gin.Context) {
	if err := s.engine.RemoveBaremetal(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) setBaremetalStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.SetBaremetalStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}
