package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"payguard/internal/decision"
	"payguard/internal/execution"
	"payguard/internal/logger"
	"payguard/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// Recommender is satisfied by *decision.Service.
type Recommender interface {
	Recommend(ctx context.Context, req decision.Request) (decision.Result, error)
}

// ExecutionManager is satisfied by *execution.Manager.
type ExecutionManager interface {
	Submit(sub execution.Submission) (execution.Record, error)
	Status(id string) (execution.Record, bool)
	History() []execution.Record
	Pending() []execution.Record
	Cancel(id string) execution.CancelResult
	AddListener(fn execution.Listener)
}

// Router exposes recommendation and execution endpoints.
type Router struct {
	Recommender Recommender
	Executions  ExecutionManager
	limiter     *clientLimiter
	events      *eventHub
}

func newRouter(rec Recommender, exec ExecutionManager, limiter *clientLimiter) *Router {
	r := &Router{Recommender: rec, Executions: exec, limiter: limiter, events: newEventHub()}
	exec.AddListener(r.events.publish)
	return r
}

// Register mounts the routes on group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	limited := r.limiter.middleware()
	group.POST("/recommendations", limited, r.handleRecommend)
	group.POST("/executions", limited, r.handleSubmit)
	group.GET("/executions", r.handleList)
	group.GET("/executions/events", r.handleEvents)
	group.GET("/executions/:id", r.handleStatus)
	group.POST("/executions/:id/cancel", r.handleCancel)
}

type executionRequest struct {
	Mode      string                     `json:"mode"`
	Payroll   types.PayrollBatch         `json:"payroll"`
	Netting   types.NettingAnalysis      `json:"netting"`
	Candidate *types.SimulationCandidate `json:"candidate,omitempty"`
}

func (r *Router) handleRecommend(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := validateBody(recommendSchema, raw); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var req decision.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	res, err := r.Recommender.Recommend(c.Request.Context(), req)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleSubmit(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := validateBody(executionSchema, raw); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	mode, err := execution.ParseMode(gjson.GetBytes(raw, "mode").String())
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var req executionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	rec, err := r.Executions.Submit(execution.Submission{
		Batch:     req.Payroll,
		Netting:   req.Netting,
		Mode:      mode,
		Candidate: req.Candidate,
	})
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (r *Router) handleList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"history": r.Executions.History(),
		"pending": r.Executions.Pending(),
	})
}

func (r *Router) handleStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	rec, ok := r.Executions.Status(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "execution " + id + " not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleCancel(c *gin.Context) {
	res := r.Executions.Cancel(strings.TrimSpace(c.Param("id")))
	if !res.Success {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, execution.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Errorf("HTTP %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
