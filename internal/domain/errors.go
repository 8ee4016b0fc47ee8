package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrUserNotFound        = errors.New("usuario no encontrado")
	ErrRoleNotFound        = errors.New("rol no encontrado")
	ErrEmailAlreadyExists  = errors.New("el email ya está registrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrWeakPassword        = errors.New("la contraseña no cumple la política")
	ErrEmailNotConfirmed   = errors.New("el email no está confirmado")
	ErrExternalLoginFailed = errors.New("el inicio de sesión externo falló")
)
