package http

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/emisor"
)

// EmisorHandler perfil del emisor, carga de firma y configuración.
type EmisorHandler struct {
	uc *emisor.EmisorUseCase
}

// NewEmisorHandler construye el handler.
func NewEmisorHandler(uc *emisor.EmisorUseCase) *EmisorHandler {
	return &EmisorHandler{uc: uc}
}

// Perfil devuelve el perfil del emisor.
// GET /emitter/profile
func (h *EmisorHandler) Perfil(c *fiber.Ctx) error {
	resp, err := h.uc.Perfil(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// CargarP12 recibe el .p12 (multipart: file + password), lo valida y lo guarda.
// POST /emitter/upload-p12
func (h *EmisorHandler) CargarP12(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "archivo .p12 requerido (campo file)"})
	}
	password := c.FormValue("password")
	if password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "password requerido"})
	}

	f, err := fh.Open()
	if err != nil {
		return responderError(c, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return responderError(c, err)
	}

	resp, err := h.uc.CargarP12(c.Context(), GetUserUID(c), data, password)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// ActualizarConfig cambia ambiente / nombre comercial / dirección.
// PATCH /emitter/config
func (h *EmisorHandler) ActualizarConfig(c *fiber.Ctx) error {
	var in dto.ConfigEmisorRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.ActualizarConfig(c.Context(), GetUserUID(c), in)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}
