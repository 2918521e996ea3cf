package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/apikeys"
	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/emisor"
)

// KeysHandler gestión de claves de integración (rutas bearer).
type KeysHandler struct {
	uc       *apikeys.ApiKeysUseCase
	emisorUC *emisor.EmisorUseCase
}

// NewKeysHandler construye el handler.
func NewKeysHandler(uc *apikeys.ApiKeysUseCase, emisorUC *emisor.EmisorUseCase) *KeysHandler {
	return &KeysHandler{uc: uc, emisorUC: emisorUC}
}

// Listar claves del emisor (sin material sensible).
// GET /keys
func (h *KeysHandler) Listar(c *fiber.Ctx) error {
	emisorID, err := h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	resp, err := h.uc.Listar(c.Context(), emisorID)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// Crear genera una clave nueva; la cruda se muestra solo aquí.
// POST /keys
func (h *KeysHandler) Crear(c *fiber.Ctx) error {
	emisorID, err := h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	var in dto.CrearApiKeyRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.Crear(c.Context(), emisorID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Revocar marca la clave como revocada.
// DELETE /keys/:id
func (h *KeysHandler) Revocar(c *fiber.Ctx) error {
	emisorID, err := h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	if err := h.uc.Revocar(c.Context(), emisorID, c.Params("id")); err != nil {
		return responderError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
