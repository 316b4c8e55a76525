package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"dualsched/internal/sched"
)

// HealthHandler reports liveness.
type HealthHandler struct {
	engine  *sched.Engine
	started time.Time
}

func NewHealthHandler(engine *sched.Engine) *HealthHandler {
	return &HealthHandler{engine: engine, started: time.Now()}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	Success(c, gin.H{
		"status":    "up",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"strategy":  h.engine.Selected().String(),
	})
}
