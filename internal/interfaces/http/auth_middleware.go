package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/dto"
	"github.com/crisanro/kipu-core/pkg/jwt"
)

// Locals keys en Fiber.
const (
	LocalUserUID  = "user_uid"
	LocalEmail    = "email"
	LocalEmisorID = "emisor_id"
)

// AuthMiddleware valida el Bearer Token del proveedor de identidad y deja UID
// y email en c.Locals.
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		userUID, email, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		c.Locals(LocalUserUID, userUID)
		c.Locals(LocalEmail, email)
		return c.Next()
	}
}

// GetUserUID devuelve el UID del contexto (después del middleware de auth).
func GetUserUID(c *fiber.Ctx) string {
	v := c.Locals(LocalUserUID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetEmail devuelve el email del contexto.
func GetEmail(c *fiber.Ctx) string {
	v := c.Locals(LocalEmail)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetEmisorID devuelve el emisor resuelto por el middleware de API key.
func GetEmisorID(c *fiber.Ctx) string {
	v := c.Locals(LocalEmisorID)
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
