// Package identity reúne las reglas de cuentas locales: normalización de nombres,
// política de contraseñas y hashing.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Normalize produce la clave de comparación de nombres de usuario, emails y roles.
// Es independiente del idioma: "admin@admin.com" y "ADMIN@Admin.com" colisionan.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return upper.String(s)
}
