package entity

import "time"

// Proveedores externos soportados.
const (
	ProviderGoogle   = "Google"
	ProviderFacebook = "Facebook"
)

// UserLogin vincula una cuenta con su identidad en un proveedor externo.
type UserLogin struct {
	LoginProvider       string
	ProviderKey         string
	ProviderDisplayName string
	UserID              string
	CreatedAt           time.Time
}
