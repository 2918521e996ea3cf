package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/internal/domain"
)

// responderError mapea la taxonomía de errores de dominio a códigos HTTP.
// Un solo punto de mapeo: los handlers delegan aquí todo error de usecase.
func responderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrEntradaInvalida):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrTarifaDesconocida):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "UNKNOWN_TAX_RATE", Message: err.Error()})
	case errors.Is(err, domain.ErrNoAutorizado):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "no autorizado"})
	case errors.Is(err, domain.ErrProhibido):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrCreditosInsuficientes):
		return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_CREDITS", Message: "créditos insuficientes"})
	case errors.Is(err, domain.ErrFirmaExpirada):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "CREDENTIAL_EXPIRED", Message: "firma expirada"})
	case errors.Is(err, domain.ErrFirmaFaltante):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "CREDENTIAL_MISSING", Message: "el emisor no tiene firma electrónica cargada"})
	case errors.Is(err, domain.ErrFirmaInvalida):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "CREDENTIAL_INVALID", Message: "firma electrónica inválida"})
	case errors.Is(err, domain.ErrRucNoCoincide):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "RUC_MISMATCH", Message: "el RUC del certificado no coincide con el del emisor"})
	case errors.Is(err, domain.ErrPuntoEmisionDesconocido):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "UNKNOWN_EMISSION_POINT", Message: "punto de emisión desconocido"})
	case errors.Is(err, domain.ErrNoEncontrado):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrDuplicado):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "recurso duplicado"})
	case errors.Is(err, domain.ErrConflicto):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: "conflicto con el estado actual"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}
