package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/creditos"
	"github.com/crisanro/kipu-core/internal/application/dto"
)

// AdminHandler recargas administrativas (x-n8n-key).
type AdminHandler struct {
	uc *creditos.CreditosUseCase
}

// NewAdminHandler construye el handler.
func NewAdminHandler(uc *creditos.CreditosUseCase) *AdminHandler {
	return &AdminHandler{uc: uc}
}

// Topup incrementa los créditos de un emisor con asiento de auditoría.
// POST /admin/topup
func (h *AdminHandler) Topup(c *fiber.Ctx) error {
	var in dto.TopupRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.Recargar(c.Context(), in)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}
