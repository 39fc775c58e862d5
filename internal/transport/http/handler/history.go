package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsvc "pantrycam/internal/app"
	"pantrycam/internal/transport/http/response"
)

type HistoryHandler struct {
	history *appsvc.HistoryService
	logger  *zap.Logger
}

func NewHistoryHandler(history *appsvc.HistoryService, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{history: history, logger: logger}
}

func (h *HistoryHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		if errors.Is(err, appsvc.ErrHistoryDisabled) {
			response.Error(c, http.StatusNotFound, response.CodeHistoryDisabled, err.Error())
			return
		}
		h.logger.Error("list analyses failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list analyses failed")
		return
	}

	response.OK(c, gin.H{"items": records})
}
