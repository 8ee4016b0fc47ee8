package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/portal-identidad/internal/application/auth"
	"github.com/jhoicas/portal-identidad/internal/application/seed"
	"github.com/jhoicas/portal-identidad/internal/application/usecase"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/memory"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/oauth"
	infrapdf "github.com/jhoicas/portal-identidad/internal/infrastructure/pdf"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/portal-identidad/internal/interfaces/http"
	"github.com/jhoicas/portal-identidad/pkg/config"
	"github.com/jhoicas/portal-identidad/pkg/logger"

	_ "github.com/jhoicas/portal-identidad/docs"
)

// @title                       Portal de identidad API
// @version                     1.0
// @description                 Cuentas locales, login externo y administración de usuarios.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
		App:   cfg.App.Name,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuración inválida")
	}
	if cfg.JWT.Generated {
		log.Warn().Msg("JWT_SECRET vacío; se generó un secreto temporal y las sesiones se pierden al reiniciar")
	}
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()

	// Sin connection string solo se admite el almacén en memoria, y solo en development.
	var uow repository.UnitOfWork
	var migrator httpRouter.Migrator
	if cfg.DB.ConnectionString() != "" {
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()

		m, err := postgres.NewMigrator(pool, log.Component("migrator"))
		if err != nil {
			log.Fatal().Err(err).Msg("cargar migraciones")
		}
		if cfg.DB.AutoMigrate {
			if _, err := m.Apply(ctx); err != nil {
				log.Fatal().Err(err).Msg("aplicar migraciones")
			}
		} else if n, err := m.PendingCount(ctx); err == nil && n > 0 {
			log.Warn().Int("pending", n).Msg("hay migraciones pendientes; ejecute 'seed migrate'")
		}
		uow = postgres.NewUnitOfWork(pool)
		migrator = m
	} else {
		log.Warn().Msg("sin ConnectionStrings:DefaultConnection; se usa almacenamiento en memoria")
		uow = memory.NewStore()
	}

	policy := identity.DefaultPasswordPolicy()
	if cfg.Identity.PasswordRequiredLength > 0 {
		policy.RequiredLength = cfg.Identity.PasswordRequiredLength
	}

	authUC := auth.NewAuthUseCase(uow, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	}, auth.Options{
		RequireConfirmedAccount: cfg.Identity.RequireConfirmedAccount,
		Policy:                  policy,
	})

	// PDF: reporte de usuarios para administración
	pdfGenerator := infrapdf.NewMarotoPDFGenerator(cfg.App.Name)
	userUC := usecase.NewUserUseCase(uow, pdfGenerator)
	providers := oauth.NewRegistry(cfg, log.Component("oauth"))

	app, err := httpRouter.NewApp(httpRouter.Options{
		Development: cfg.App.IsDevelopment(),
		AppName:     cfg.App.Name,
		HTTPSPort:   cfg.HTTP.HTTPSPort,
		HSTSMaxAge:  cfg.HTTP.HSTSMaxAge,
		WebRoot:     cfg.HTTP.WebRoot,
		SwaggerFile: cfg.HTTP.SwaggerFile,
		JWTSecret:   cfg.JWT.Secret,
	}, httpRouter.Deps{
		Auth:      authUC,
		Users:     userUC,
		Providers: providers,
		Migrator:  migrator,
		Log:       log.Component("http"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("construir aplicación HTTP")
	}

	// Seed de roles y administrador: un fallo se registra y el arranque continúa salvo Seed.Strict.
	report, err := seed.NewSeeder(uow, seed.Options{
		Roles:         cfg.Seed.Roles,
		AdminEmail:    cfg.Seed.AdminEmail,
		AdminPassword: cfg.Seed.AdminPassword,
	}, policy, log.Component("seed")).Run(ctx)
	if err != nil {
		if cfg.Seed.Strict {
			log.Fatal().Err(err).EmbedObject(report).Msg("seed de datos iniciales")
		}
		log.Error().Err(err).EmbedObject(report).Msg("seed de datos iniciales incompleto")
	} else {
		log.Info().EmbedObject(report).Msg("seed de datos iniciales")
	}

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
