package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crisanro/kipu-core/internal/application/apikeys"
	"github.com/crisanro/kipu-core/internal/application/auth"
	"github.com/crisanro/kipu-core/internal/application/creditos"
	"github.com/crisanro/kipu-core/internal/application/emisor"
	"github.com/crisanro/kipu-core/internal/application/estructura"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	"github.com/crisanro/kipu-core/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AuthUC       *auth.AuthUseCase
	EmisorUC     *emisor.EmisorUseCase
	EstructuraUC *estructura.EstructuraUseCase
	EmitirUC     *facturacion.EmitirFacturaUseCase
	ConsultasUC  *facturacion.ConsultasUseCase
	ApiKeysUC    *apikeys.ApiKeysUseCase
	CreditosUC   *creditos.CreditosUseCase

	Emisores repository.EmisorRepository
	Creditos repository.CreditoRepository
	Facturas repository.FacturaRepository
	Storage  facturacion.ArtifactStore

	JWTSecret string
	N8NAPIKey string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	authHandler := NewAuthHandler(deps.AuthUC)
	emisorHandler := NewEmisorHandler(deps.EmisorUC)
	estructuraHandler := NewEstructuraHandler(deps.EstructuraUC, deps.EmisorUC)
	facturaHandler := NewFacturaHandler(deps.EmitirUC, deps.ConsultasUC, deps.EmisorUC)
	integrationHandler := NewIntegrationHandler(deps.EmitirUC, deps.ConsultasUC, deps.Emisores, deps.Creditos)
	keysHandler := NewKeysHandler(deps.ApiKeysUC, deps.EmisorUC)
	adminHandler := NewAdminHandler(deps.CreditosUC)
	publicHandler := NewPublicHandler(deps.Facturas, deps.Storage)

	bearer := AuthMiddleware(deps.JWTSecret)
	apiKey := ApiKeyMiddleware(deps.ApiKeysUC)
	n8n := N8NMiddleware(deps.N8NAPIKey)

	// Onboarding (bearer)
	authGroup := app.Group("/auth", bearer)
	authGroup.Post("/sync", authHandler.Sync)
	authGroup.Post("/activar-ruc", authHandler.ActivarRUC)

	// Emisor (bearer)
	emitter := app.Group("/emitter", bearer)
	emitter.Get("/profile", emisorHandler.Perfil)
	emitter.Post("/upload-p12", emisorHandler.CargarP12)
	emitter.Patch("/config", emisorHandler.ActualizarConfig)

	// Estructura (bearer)
	structure := app.Group("/structure", bearer)
	structure.Get("/establishments", estructuraHandler.ListEstablecimientos)
	structure.Post("/establishments", estructuraHandler.CrearEstablecimiento)
	structure.Get("/issuing-points", estructuraHandler.ListPuntos)
	structure.Post("/issuing-points", estructuraHandler.CrearPunto)
	structure.Get("/tree", estructuraHandler.Arbol)
	structure.Post("/validate", estructuraHandler.Validar)

	// Facturas (bearer, ruta encolada)
	invoices := app.Group("/invoices", bearer)
	invoices.Post("/emit", facturaHandler.Emitir)
	invoices.Get("/history", facturaHandler.Historial)
	invoices.Get("/:id", facturaHandler.GetByID)

	// Integraciones (x-api-key, ruta síncrona)
	integrations := app.Group("/integrations", apiKey)
	integrations.Post("/invoice", integrationHandler.EmitirSincrono)
	integrations.Get("/status", integrationHandler.Status)
	integrations.Post("/validate", estructuraHandler.ValidarConEmisor)

	// API keys (bearer)
	keys := app.Group("/keys", bearer)
	keys.Get("/", keysHandler.Listar)
	keys.Post("/", keysHandler.Crear)
	keys.Delete("/:id", keysHandler.Revocar)

	// Admin (x-n8n-key)
	admin := app.Group("/admin", n8n)
	admin.Post("/topup", adminHandler.Topup)

	// Público
	public := app.Group("/public")
	public.Get("/pdf/:clave", publicHandler.PDF)
	public.Get("/xml/:clave", publicHandler.XML)
}
