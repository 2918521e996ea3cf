package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/auth"
	"github.com/crisanro/kipu-core/internal/application/dto"
)

// AuthHandler onboarding: sincronización de perfil y activación de RUC.
type AuthHandler struct {
	uc *auth.AuthUseCase
}

// NewAuthHandler construye el handler.
func NewAuthHandler(uc *auth.AuthUseCase) *AuthHandler {
	return &AuthHandler{uc: uc}
}

// Sync crea o encuentra el perfil del usuario autenticado.
// POST /auth/sync
func (h *AuthHandler) Sync(c *fiber.Ctx) error {
	resp, err := h.uc.Sync(c.Context(), GetUserUID(c), GetEmail(c))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// ActivarRUC crea el emisor con la estructura por defecto y créditos semilla.
// POST /auth/activar-ruc
func (h *AuthHandler) ActivarRUC(c *fiber.Ctx) error {
	var in dto.ActivarRUCRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.ActivarRUC(c.Context(), GetUserUID(c), in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}
