package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/emisor"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
)

// HistorialDefault facturas devueltas por /invoices/history.
const HistorialDefault = 50

// FacturaHandler emisión encolada e historial (rutas bearer).
type FacturaHandler struct {
	emitir    *facturacion.EmitirFacturaUseCase
	consultas *facturacion.ConsultasUseCase
	emisorUC  *emisor.EmisorUseCase
}

// NewFacturaHandler construye el handler.
func NewFacturaHandler(emitir *facturacion.EmitirFacturaUseCase, consultas *facturacion.ConsultasUseCase, emisorUC *emisor.EmisorUseCase) *FacturaHandler {
	return &FacturaHandler{emitir: emitir, consultas: consultas, emisorUC: emisorUC}
}

// Emitir encola la factura en PENDIENTE; el worker la firma y envía.
// POST /invoices/emit
func (h *FacturaHandler) Emitir(c *fiber.Ctx) error {
	emisorID, err := h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	var in dto.EmitirFacturaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.emitir.Encolar(c.Context(), emisorID, in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

// Historial últimas 50 facturas del emisor.
// GET /invoices/history
func (h *FacturaHandler) Historial(c *fiber.Ctx) error {
	emisorID, err := h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	resp, err := h.consultas.Historial(c.Context(), emisorID, HistorialDefault)
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}

// GetByID detalle de una factura propia.
// GET /invoices/:id
func (h *FacturaHandler) GetByID(c *fiber.Ctx) error {
	emisorID, err := h.emisorUC.ResolverID(c.Context(), GetUserUID(c))
	if err != nil {
		return responderError(c, err)
	}
	resp, err := h.consultas.GetFactura(c.Context(), emisorID, c.Params("id"))
	if err != nil {
		return responderError(c, err)
	}
	return c.JSON(resp)
}
