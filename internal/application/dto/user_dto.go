package dto

import "time"

// RegisterRequest alta de una cuenta local. UserName es el email.
type RegisterRequest struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// LoginRequest login local: Email acepta el email o el nombre de usuario.
type LoginRequest struct {
	Email      string `json:"email" form:"email" validate:"required"`
	Password   string `json:"password" form:"password" validate:"required"`
	RememberMe bool   `json:"remember_me" form:"remember_me"`
}

// LoginResponse token de sesión firmado y el usuario autenticado.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UserResponse salida de un usuario (sin password).
type UserResponse struct {
	ID             string    `json:"id"`
	UserName       string    `json:"user_name"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	HasPassword    bool      `json:"has_password"`
	Roles          []string  `json:"roles"`
	Logins         []string  `json:"logins,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserListResponse página de usuarios.
type UserListResponse struct {
	Items []UserResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// RoleResponse rol existente.
type RoleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExternalProfile identidad devuelta por un proveedor externo.
type ExternalProfile struct {
	Provider      string `json:"provider"`
	ProviderKey   string `json:"provider_key"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}
