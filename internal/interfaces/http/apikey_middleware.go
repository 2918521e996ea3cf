package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/apikeys"
	"github.com/crisanro/kipu-core/internal/application/dto"
)

// ApiKeyMiddleware autentica integraciones con el header x-api-key y deja el
// emisor en c.Locals. Clave desconocida o revocada responde 403.
func ApiKeyMiddleware(uc *apikeys.ApiKeysUseCase) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clave := c.Get("x-api-key")
		if clave == "" {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "MISSING_API_KEY", Message: "header x-api-key requerido"})
		}
		k, err := uc.Autenticar(c.Context(), clave)
		if err != nil || k == nil {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "INVALID_API_KEY", Message: "api key inválida o revocada"})
		}
		c.Locals(LocalEmisorID, k.EmisorID)
		return c.Next()
	}
}

// N8NMiddleware compara el secreto estático del header x-n8n-key.
func N8NMiddleware(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" || c.Get("x-n8n-key") != apiKey {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "INVALID_SERVICE_KEY", Message: "clave de servicio inválida"})
		}
		return c.Next()
	}
}
