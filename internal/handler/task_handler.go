package handler

import (
	"context"
	"log/slog"

	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type ExerciseService interface {
	Generate(ctx context.Context, taskType service.TaskType, req service.GenerateRequest) (*service.TaskPayload, error)
	Verify(ctx context.Context, taskType service.TaskType, sol service.Solution) (*service.VerificationResult, error)
}

type TaskHandler struct {
	tasks ExerciseService
	log   *slog.Logger
}

func NewTaskHandler(tasks ExerciseService, log *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: log}
}

type GenerateTaskRequest struct {
	Language            string `json:"language" binding:"required"`
	Difficulty          string `json:"difficulty" binding:"required"`
	CustomMinTextLength *int   `json:"customMinTextLength" binding:"omitempty,min=1,max=100"`
	CustomMaxTextLength *int   `json:"customMaxTextLength" binding:"omitempty,min=1,max=100"`
	CustomMinKey        *int   `json:"customMinKey" binding:"omitempty,min=1"`
	CustomMaxKey        *int   `json:"customMaxKey" binding:"omitempty,min=1"`
}

type TaskSolutionRequest struct {
	TaskID                   string  `json:"taskId" binding:"required"`
	KeySolution              *int    `json:"keySolution"`
	TextSolution             *string `json:"textSolution"`
	RequestCorrectAnswerOnly *bool   `json:"requestCorrectAnswerOnly"`
}

// Generate creates a Caesar task of the type named in the path
func (h *TaskHandler) Generate(c *gin.Context) {
	taskType, err := service.ParseTaskType(c.Param("taskType"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var req GenerateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	lang, err := service.ParseLanguage(req.Language)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	difficulty, err := service.ParseDifficulty(req.Difficulty)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	payload, err := h.tasks.Generate(c.Request.Context(), taskType, service.GenerateRequest{
		Language:            lang,
		Difficulty:          difficulty,
		CustomMinTextLength: req.CustomMinTextLength,
		CustomMaxTextLength: req.CustomMaxTextLength,
		CustomMinKey:        req.CustomMinKey,
		CustomMaxKey:        req.CustomMaxKey,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, payload)
}

// Verify checks a submitted solution
func (h *TaskHandler) Verify(c *gin.Context) {
	taskType, err := service.ParseTaskType(c.Param("taskType"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var req TaskSolutionRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.tasks.Verify(c.Request.Context(), taskType, service.Solution{
		TaskID:                   req.TaskID,
		KeySolution:              req.KeySolution,
		TextSolution:             req.TextSolution,
		RequestCorrectAnswerOnly: req.RequestCorrectAnswerOnly != nil && *req.RequestCorrectAnswerOnly,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, result)
}
