package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ProcessHandler serves the live process monitor.
type ProcessHandler struct {
	procs ProcessService
}

func NewProcessHandler(procs ProcessService) *ProcessHandler {
	return &ProcessHandler{procs: procs}
}

// PriorityRequest is the body of POST /processes/:pid/priority.
type PriorityRequest struct {
	Override *int `json:"override" binding:"required"`
}

func (h *ProcessHandler) available(c *gin.Context) bool {
	if h.procs == nil {
		Error(c, UNAVAILABLE, "process monitor is not running")
		return false
	}
	return true
}

func (h *ProcessHandler) List(c *gin.Context) {
	if !h.available(c) {
		return
	}
	Success(c, h.procs.Views())
}

func (h *ProcessHandler) RequestPriority(c *gin.Context) {
	if !h.available(c) {
		return
	}
	pid, err := strconv.ParseInt(c.Param("pid"), 10, 32)
	if err != nil || pid <= 0 {
		Error(c, VALIDATION_ERROR, "pid must be a positive integer")
		return
	}
	var req PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, VALIDATION_ERROR, err.Error())
		return
	}
	if err := h.procs.RequestPriority(int32(pid), *req.Override); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"pid": pid, "override": *req.Override, "applies": "next cycle"})
}
