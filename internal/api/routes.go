// Package api exposes the scheduling engine and the process monitor over
// HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dualsched/internal/importance"
	"dualsched/internal/sched"
)

// ProcessService is the part of the monitor the API uses.
type ProcessService interface {
	Views() []importance.ProcessView
	RequestPriority(pid int32, override int) error
}

// SetupRoutes registers every route on router. procs may be nil when no
// monitor runs in this process.
func SetupRoutes(router *gin.Engine, engine *sched.Engine, procs ProcessService, log *logrus.Entry) {
	router.Use(RequestLogger(log))

	healthHandler := NewHealthHandler(engine)
	schedHandler := NewSchedHandler(engine)
	processHandler := NewProcessHandler(procs)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.CheckHealth)

		v1.POST("/tasks", schedHandler.CreateTask)

		strategies := v1.Group("/strategies/:kind")
		{
			strategies.POST("/advance", schedHandler.Advance)
			strategies.POST("/run", schedHandler.Run)
			strategies.GET("/snapshot", schedHandler.Snapshot)
			strategies.GET("/stats", schedHandler.Stats)
			strategies.GET("/tasks/:id", schedHandler.GetTask)
		}

		processes := v1.Group("/processes")
		{
			processes.GET("", processHandler.List)
			processes.POST("/:pid/priority", processHandler.RequestPriority)
		}
	}
}

// RequestLogger logs every request at debug and failures at warn.
func RequestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if c.Writer.Status() >= 400 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
