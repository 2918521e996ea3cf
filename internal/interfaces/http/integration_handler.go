package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

// StatusFacturas facturas devueltas en /integrations/status.
const StatusFacturas = 20

// IntegrationHandler rutas autenticadas con API key (x-api-key).
type IntegrationHandler struct {
	emitir    *facturacion.EmitirFacturaUseCase
	consultas *facturacion.ConsultasUseCase
	emisores  repository.EmisorRepository
	creditos  repository.CreditoRepository
}

// NewIntegrationHandler construye el handler.
func NewIntegrationHandler(
	emitir *facturacion.EmitirFacturaUseCase,
	consultas *facturacion.ConsultasUseCase,
	emisores repository.EmisorRepository,
	creditos repository.CreditoRepository,
) *IntegrationHandler {
	return &IntegrationHandler{emitir: emitir, consultas: consultas, emisores: emisores, creditos: creditos}
}

// EmitirSincrono emite la factura completa: al responder, la fila está en
// FIRMADO con sus artefactos subidos.
// POST /integrations/invoice
func (h *IntegrationHandler) EmitirSincrono(c *fiber.Ctx) error {
	var in dto.EmitirFacturaRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	resp, err := h.emitir.Emitir(c.Context(), GetEmisorID(c), in)
	if err != nil {
		return responderError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Status resumen del emisor + últimas 20 facturas.
// GET /integrations/status
func (h *IntegrationHandler) Status(c *fiber.Ctx) error {
	emisorID := GetEmisorID(c)
	e, err := h.emisores.GetByID(emisorID)
	if err != nil {
		return responderError(c, err)
	}
	if e == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "emisor no encontrado"})
	}
	saldo, err := h.creditos.GetBalance(emisorID)
	if err != nil {
		return responderError(c, err)
	}
	facturas, err := h.consultas.Historial(c.Context(), emisorID, StatusFacturas)
	if err != nil {
		return responderError(c, err)
	}

	resp := dto.StatusIntegracionResponse{
		Emisor: dto.EmisorResponse{
			ID:                   e.ID,
			RUC:                  e.RUC,
			RazonSocial:          e.RazonSocial,
			NombreComercial:      e.NombreComercial,
			DireccionMatriz:      e.DireccionMatriz,
			Ambiente:             e.Ambiente,
			ObligadoContabilidad: e.ObligadoContabilidad,
			FirmaCargada:         e.P12Path != "",
			Creditos:             saldo,
		},
		Facturas: facturas,
	}
	if e.P12Expiration != nil {
		resp.Emisor.FirmaExpiracion = e.P12Expiration.Format("2006-01-02")
	}
	return c.JSON(resp)
}
