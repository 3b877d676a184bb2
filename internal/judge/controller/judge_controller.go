package controller

import (
	"context"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"

	"judger/internal/judge/model"
	"judger/pkg/utils/response"
)

// Submitter accepts judge requests.
type Submitter interface {
	Submit(ctx context.Context, req model.JudgeRequest) error
}

// JudgeController handles judge intake and health requests.
type JudgeController struct {
	submitter Submitter
}

// NewJudgeController creates a new controller.
func NewJudgeController(submitter Submitter) *JudgeController {
	return &JudgeController{submitter: submitter}
}

// Judge enqueues one submission and replies "success" once it is queued.
func (h *JudgeController) Judge(c *gin.Context) {
	var req model.JudgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if err := h.submitter.Submit(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Text(c, "success")
}

// Ping answers liveness checks.
func (h *JudgeController) Ping(c *gin.Context) {
	response.Text(c, "pong")
}

// Info reports the number of CPUs available to the judge.
func (h *JudgeController) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cpu": runtime.NumCPU()})
}

// Register mounts the judge routes on router.
func (h *JudgeController) Register(router gin.IRoutes) {
	router.POST("/judge", h.Judge)
	router.GET("/ping", h.Ping)
	router.GET("/info", h.Info)
}
