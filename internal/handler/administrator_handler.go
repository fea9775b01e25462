package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bazaarhq/storefront-api/internal/repository"
	"github.com/bazaarhq/storefront-api/internal/utils"
)

// AdministratorHandler exposes read-only directory views to the admin panel.
// Provisioning stays with the out-of-band process.
type AdministratorHandler struct {
	adminRepo *repository.AdministratorRepository
}

func NewAdministratorHandler(adminRepo *repository.AdministratorRepository) *AdministratorHandler {
	return &AdministratorHandler{adminRepo: adminRepo}
}

func (h *AdministratorHandler) ListAdministrators(c *gin.Context) {
	admins, err := h.adminRepo.List(c.Request.Context())
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to list administrators")
		return
	}
	utils.Success(c, 200, "Administrators", admins)
}

func (h *AdministratorHandler) GetAdministrator(c *gin.Context) {
	admin, err := h.adminRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Error(c, 404, "NOT_FOUND", "Administrator not found")
		return
	}
	utils.Success(c, 200, "Administrator", admin)
}
