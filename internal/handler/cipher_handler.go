package handler

import (
	"log/slog"

	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

type Visualizer interface {
	Visualize(text string, shift int, lang service.Language, encrypt bool) (*service.Visualization, error)
}

type CipherHandler struct {
	cipher Visualizer
	log    *slog.Logger
}

func NewCipherHandler(cipher Visualizer, log *slog.Logger) *CipherHandler {
	return &CipherHandler{cipher: cipher, log: log}
}

type CipherRequest struct {
	Text     string `json:"text" binding:"required,max=500"`
	Shift    *int   `json:"shift" binding:"required,min=1"`
	Language string `json:"language" binding:"required"`
	Encrypt  *bool  `json:"encrypt" binding:"required"`
}

// Visualize returns the per-character steps of a Caesar transform
func (h *CipherHandler) Visualize(c *gin.Context) {
	var req CipherRequest
	if !bindJSON(c, &req) {
		return
	}

	lang, err := service.ParseLanguage(req.Language)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	vis, err := h.cipher.Visualize(req.Text, *req.Shift, lang, *req.Encrypt)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	utils.SuccessResponse(c, vis)
}
