package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	appauth "github.com/crisanro/kipu-core/internal/application/auth"
	"github.com/crisanro/kipu-core/internal/application/apikeys"
	"github.com/crisanro/kipu-core/internal/application/creditos"
	appemisor "github.com/crisanro/kipu-core/internal/application/emisor"
	"github.com/crisanro/kipu-core/internal/application/estructura"
	"github.com/crisanro/kipu-core/internal/application/facturacion"
	domsri "github.com/crisanro/kipu-core/internal/domain/sri"
	"github.com/crisanro/kipu-core/internal/infrastructure/notify"
	infrapdf "github.com/crisanro/kipu-core/internal/infrastructure/pdf"
	"github.com/crisanro/kipu-core/internal/infrastructure/postgres"
	infrasmtp "github.com/crisanro/kipu-core/internal/infrastructure/smtp"
	infrasri "github.com/crisanro/kipu-core/internal/infrastructure/sri"
	"github.com/crisanro/kipu-core/internal/infrastructure/sri/signer"
	"github.com/crisanro/kipu-core/internal/infrastructure/storage"
	httpRouter "github.com/crisanro/kipu-core/internal/interfaces/http"
	"github.com/crisanro/kipu-core/internal/worker"
	"github.com/crisanro/kipu-core/pkg/config"
	"github.com/crisanro/kipu-core/pkg/logger"
)

func main() {
	inicio := time.Now()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("politica_creditos", cfg.Creditos.Politica).
		Msg("iniciando aplicación")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	store, err := storage.NewMinioStore(cfg.Minio)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a MinIO")
	}

	// Repositorios atados al pool (lecturas fuera de transacción)
	emisorRepo := postgres.NewEmisorRepository(pool)
	estructuraRepo := postgres.NewEstructuraRepository(pool)
	facturaRepo := postgres.NewFacturaRepository(pool)
	creditoRepo := postgres.NewCreditoRepository(pool)
	perfilRepo := postgres.NewPerfilRepository(pool)
	apiKeyRepo := postgres.NewApiKeyRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Núcleo de emisión: cálculo -> XML -> XAdES-BES -> RIDE -> artefactos
	calculadora := domsri.NewCalculadora(cfg.SRI.IVALenient)
	xmlBuilder := infrasri.NewXMLBuilderService()
	firmador := signer.NewServicioFirma()
	credencialStore := signer.NewAlmacenCredenciales(store, cfg.App.EncryptionKey)
	rideGenerator := infrapdf.NewMarotoRIDEGenerator()

	emitirUC := facturacion.NewEmitirFacturaUseCase(
		txRunner, calculadora, xmlBuilder, firmador, credencialStore,
		store, rideGenerator, cfg.Creditos.Politica, log,
	)
	consultasUC := facturacion.NewConsultasUseCase(facturaRepo)

	authUC := appauth.NewAuthUseCase(perfilRepo, emisorRepo, txRunner)
	emisorUC := appemisor.NewEmisorUseCase(emisorRepo, creditoRepo, store, cfg.App.EncryptionKey)
	estructuraUC := estructura.NewEstructuraUseCase(estructuraRepo)
	apiKeysUC := apikeys.NewApiKeysUseCase(apiKeyRepo)
	creditosUC := creditos.NewCreditosUseCase(emisorRepo, creditoRepo, txRunner)

	// Worker de liquidación: firma encolada + recepción + autorización SRI
	liquidador := worker.NewLiquidador(
		txRunner, emitirUC, facturaRepo,
		infrasri.NewSOAPClienteSRI(),
		store,
		notify.NewWebhookNotifier(cfg.Webhook.URL),
		infrasmtp.NewMailer(cfg.SMTP),
		cfg.SRI, cfg.Creditos.Politica, log,
	)
	liquidador.Iniciar(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 30,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    8 * 1024 * 1024, // los .p12 viajan por multipart
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Kipu Core API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"uptime":    time.Since(inicio).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:       authUC,
		EmisorUC:     emisorUC,
		EstructuraUC: estructuraUC,
		EmitirUC:     emitirUC,
		ConsultasUC:  consultasUC,
		ApiKeysUC:    apiKeysUC,
		CreditosUC:   creditosUC,
		Emisores:     emisorRepo,
		Creditos:     creditoRepo,
		Facturas:     facturaRepo,
		Storage:      store,
		JWTSecret:    cfg.JWT.Secret,
		N8NAPIKey:    cfg.Admin.N8NAPIKey,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	cancel() // detiene los jobs del worker

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
