package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/portal-identidad/internal/application/auth"
	"github.com/jhoicas/portal-identidad/internal/application/usecase"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
)

// RouterDeps dependencias para el router de la API.
type RouterDeps struct {
	AuthUC    *auth.AuthUseCase
	UserUC    *usecase.UserUseCase
	JWTSecret string
	Log       zerolog.Logger
}

// Router registra las rutas de la API JSON.
func Router(app fiber.Router, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC, deps.Log)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	account := api.Group("/account", AuthMiddleware(deps.JWTSecret))
	account.Get("/me", authHandler.Me)

	// Administración (solo Admin)
	admin := api.Group("/admin", AuthMiddleware(deps.JWTSecret), RequireRole(entity.RoleAdmin))
	userHandler := NewUserHandler(deps.UserUC, deps.Log)
	admin.Get("/users", userHandler.List)
	admin.Get("/roles", userHandler.Roles)
}
