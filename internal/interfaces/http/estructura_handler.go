package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/emisor"
	"github.com/crisanro/kipu-core/internal/application/estructura"
)

// EstructuraHandler establecimientos y puntos de emisión.
type EstructuraHandler struct {
	uc       *estructura.EstructuraUseCase
	emisorUC *emisor.EmisorUseCase
}

// NewEstructuraHandler construye el handler.
func NewEstructuraHandler(uc *estructura.EstructuraUseCase, emisorUC *emisor.EmisorUseCase) *EstructuraHandler {
	return &EstructuraHandler{uc: uc, emisorUC: emisorUC}
}

func (h *EstructuraHandler) emisorID(c *fiber.Ctx) (string, error) {
	return h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
}

// ListEstablecimientos lista establecimientos.
// GET /structure/establishments
func (h *EstructuraHandler) ListEstablecimientos(c *fiber.Ctx) error {
	emisorID, err := h.emisorID(c)
	if err != nil {
		return responderError(c, err)
	}
	resp, err := h.uc.ListEstablecimientos(c.Context(), emisorID)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// CrearEstablecimiento crea un establecimiento (código de 3 dígitos).
// POST /structure/establishments
func (h *EstructuraHandler) CrearEstablecimiento(c *fiber.Ctx) error {
	emisorID, err := h.emisorID(c)
	if err != nil {
		return responderError(c, err)
	}
	var in dto.CrearEstablecimientoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.CrearEstablecimiento(c.Context(), emisorID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ListPuntos lista puntos del establecimiento indicado en query.
// GET /structure/issuing-points?establecimiento=001
func (h *EstructuraHandler) ListPuntos(c *fiber.Ctx) error {
	emisorID, err := h.emisorID(c)
	if err != nil {
		return responderError(c, err)
	}
	resp, err := h.uc.ListPuntos(c.Context(), emisorID, c.Query("establecimiento"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// CrearPunto crea un punto de emisión bajo un establecimiento propio.
// POST /structure/issuing-points
func (h *EstructuraHandler) CrearPunto(c *fiber.Ctx) error {
	emisorID, err := h.emisorID(c)
	if err != nil {
		return responderError(c, err)
	}
	var in dto.CrearPuntoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.CrearPunto(c.Context(), emisorID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Arbol vista jerárquica de la estructura.
// GET /structure/tree
func (h *EstructuraHandler) Arbol(c *fiber.Ctx) error {
	emisorID, err := h.emisorID(c)
	if err != nil {
		return responderError(c, err)
	}
	resp, err := h.uc.Arbol(c.Context(), emisorID)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// Validar verifica que el par (establecimiento, punto) exista.
// POST /structure/validate
func (h *EstructuraHandler) Validar(c *fiber.Ctx) error {
	emisorID, err := h.emisorID(c)
	if err != nil {
		return responderError(c, err)
	}
	return h.validarPara(c, emisorID)
}

// ValidarConEmisor versión para integraciones (emisor por API key).
// POST /integrations/validate
func (h *EstructuraHandler) ValidarConEmisor(c *fiber.Ctx) error {
	return h.validarPara(c, GetEmisorID(c))
}

func (h *EstructuraHandler) validarPara(c *fiber.Ctx, emisorID string) error {
	var in dto.ValidarPuntoRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.uc.Validar(c.Context(), emisorID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}
