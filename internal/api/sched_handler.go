package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"dualsched/internal/sched"
)

// SchedHandler serves the simulated strategies.
type SchedHandler struct {
	engine *sched.Engine
}

func NewSchedHandler(engine *sched.Engine) *SchedHandler {
	return &SchedHandler{engine: engine}
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	Name     string `json:"name"`
	BurstMS  int64  `json:"burst_ms" binding:"required"`
	Nice     int    `json:"nice"`
	Strategy string `json:"strategy"` // empty = selected strategy
	Class    string `json:"class"`    // fg (by default)
	Policy   string `json:"policy"`   // ts (by default)
	AtMS     *int64 `json:"at_ms"`    // absent = now
}

// AdvanceRequest is the body of POST /strategies/:kind/advance.
type AdvanceRequest struct {
	MS int64 `json:"ms" binding:"required"`
}

func (h *SchedHandler) kind(c *gin.Context) (sched.Kind, bool) {
	kind, err := sched.ParseKind(c.Param("kind"))
	if err != nil {
		Fail(c, err)
		return 0, false
	}
	return kind, true
}

func (h *SchedHandler) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, VALIDATION_ERROR, err.Error())
		return
	}

	kind := h.engine.Selected()
	if req.Strategy != "" {
		k, err := sched.ParseKind(req.Strategy)
		if err != nil {
			Fail(c, err)
			return
		}
		kind = k
	}
	if req.Class == "" {
		req.Class = "fg"
	}
	if req.Policy == "" {
		req.Policy = "ts"
	}
	class, err := kind.ParseClass(req.Class)
	if err != nil {
		Fail(c, err)
		return
	}
	policy, err := sched.ParsePolicy(req.Policy)
	if err != nil {
		Fail(c, err)
		return
	}
	at := int64(-1)
	if req.AtMS != nil {
		at = *req.AtMS
	}

	id, err := h.engine.CreateTaskAt(req.Name, req.BurstMS, req.Nice, policy, class, kind, at)
	if err != nil {
		Fail(c, err)
		return
	}
	task, err := h.engine.Task(kind, id)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"strategy": kind.String(), "task": task})
}

func (h *SchedHandler) Advance(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, VALIDATION_ERROR, err.Error())
		return
	}
	if err := h.engine.Advance(kind, req.MS); err != nil {
		Fail(c, err)
		return
	}
	h.snapshot(c, kind)
}

func (h *SchedHandler) Run(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	if err := h.engine.RunToCompletion(kind); err != nil {
		Fail(c, err)
		return
	}
	h.stats(c, kind)
}

func (h *SchedHandler) Snapshot(c *gin.Context) {
	if kind, ok := h.kind(c); ok {
		h.snapshot(c, kind)
	}
}

func (h *SchedHandler) Stats(c *gin.Context) {
	if kind, ok := h.kind(c); ok {
		h.stats(c, kind)
	}
}

func (h *SchedHandler) GetTask(c *gin.Context) {
	kind, ok := h.kind(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		Error(c, VALIDATION_ERROR, "task id must be a positive integer")
		return
	}
	task, err := h.engine.Task(kind, sched.TaskID(id))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, task)
}

func (h *SchedHandler) snapshot(c *gin.Context, kind sched.Kind) {
	snap, err := h.engine.Snapshot(kind)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, snap)
}

func (h *SchedHandler) stats(c *gin.Context, kind sched.Kind) {
	stats, err := h.engine.Stats(kind)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, stats)
}
