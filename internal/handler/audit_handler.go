package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bazaarhq/storefront-api/internal/repository"
	"github.com/bazaarhq/storefront-api/internal/utils"
)

// AuditHandler exposes the read side of the audit log.
type AuditHandler struct {
	auditRepo *repository.AuditEventRepository
}

func NewAuditHandler(auditRepo *repository.AuditEventRepository) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

func (h *AuditHandler) ListEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	filter := repository.AuditEventFilter{
		AdministratorID: c.Query("administratorId"),
		Action:          c.Query("action"),
		Page:            page,
		Limit:           limit,
	}

	events, total, err := h.auditRepo.List(c.Request.Context(), filter)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to list audit events")
		return
	}

	utils.SuccessWithPagination(c, 200, "Audit events", events, filter.Page, filter.Limit, total)
}
