package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetd/internal/domain"
	"fleetd/internal/engine"
)

type createVMRequest struct {
	Hostname  string `json:"hostname" binding:"required"`
	ImageID   string `json:"image_id" binding:"required"`
	CPUCores  int    `json:"cpu_cores" binding:"required"`
	MemoryMB  int    `json:"memory_mb" binding:"required"`
	StorageGB int    `json:"storage_gb"`
	CreatedBy string `json:"created_by"`
}

func (s *Server) createVM(c *gin.Context) {
	var req createVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vm, err := s.engine.CreateVM(c.Request.Context(), engine.CreateVMRequest{
		Hostname:  req.Hostname,
		ImageID:   req.ImageID,
		CPUCores:  req.CPUCores,
		MemoryMB:  req.MemoryMB,
		StorageGB: req.StorageGB,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, vm)
}

func (s *Server) listVMs(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !domain.ValidVMStatus(status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + status})
		return
	}
	vms, err := s.store.ListVMs(status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": vms})
}

func (s *Server) getVM(c *gin.Context) {
	vm, err := s.store.GetVM(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, vm)
}

func (s *Server) deleteVM(c *gin.Context) {
	if err := s.engine.DeleteVM(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) stopVM(c *gin.Context) {
	if err := s.engine.StopVM(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.VMStopped})
}

func (s *Server) startVM(c *gin.Context) {
	if err := s.engine.StartVM(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": domain.VMRunning})
}

type createImageRequest struct {
	Name       string `json:"name" binding:"required"`
	OSType     string `json:"os_type" binding:"required"`
	Version    string `json:"version"`
	ImageURL   string `json:"image_url"`
	MinCPU     int    `json:"min_cpu"`
	MinMemory  int    `json:"min_memory"`
	MinStorage int    `json:"min_storage"`
}

func (s *Server) createImage(c *gin.Context) {
	var req createImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	img := &domain.VMImage{
		Name:       req.Name,
		OSType:     req.OSType,
		Version:    req.Version,
		ImageURL:   req.ImageURL,
		MinCPU:     req.MinCPU,
		MinMemory:  req.MinMemory,
		MinStorage: req.MinStorage,
		IsActive:   true,
	}
	if err := s.store.SaveImage(img); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, img)
}

func (s *Server) listImages(c *gin.Context) {
	images, err := s.store.ListImages()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": images})
}
