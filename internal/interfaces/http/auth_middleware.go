package http

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/pkg/jwt"
)

// Locals keys con la identidad del request.
const (
	LocalUserID   = "user_id"
	LocalUserName = "user_name"
	LocalEmail    = "email"
	LocalRoles    = "roles"
)

// SessionCookie cookie HttpOnly con el token de sesión.
const SessionCookie = "identity.application"

// Rutas de las páginas de cuenta a las que redirige la autorización.
const (
	LoginPath        = "/Identity/Account/Login"
	AccessDeniedPath = "/Identity/Account/AccessDenied"
)

// Authenticate lee la sesión (cookie o Bearer) y carga la identidad en c.Locals.
// Nunca rechaza: sin token o con token inválido el request sigue como anónimo.
func Authenticate(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			token, _ = bearerToken(c)
		}
		if token == "" {
			return c.Next()
		}
		if sub, err := jwt.Parse(jwtSecret, token); err == nil {
			setIdentity(c, sub)
		}
		return c.Next()
	}
}

// AuthMiddleware valida el Bearer Token JWT y extrae la identidad a c.Locals (API JSON).
func AuthMiddleware(jwtSecret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "Authorization header requerido"})
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "formato: Bearer <token>"})
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_TOKEN", Message: "token vacío"})
		}
		sub, err := jwt.Parse(jwtSecret, tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
		}
		setIdentity(c, sub)
		return c.Next()
	}
}

// RequireRole autoriza si el usuario tiene alguno de los roles indicados. Usar después de AuthMiddleware.
func RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles := GetRoles(c)
		if len(roles) == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "MISSING_ROLE", Message: "el token no contiene roles"})
		}
		if !hasAnyRole(roles, allowed) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "no tiene permisos para este recurso"})
		}
		return c.Next()
	}
}

// AuthorizePage protege una página: anónimos van al login, usuarios sin rol a AccessDenied.
// Sin roles basta con estar autenticado.
func AuthorizePage(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		returnURL := url.QueryEscape(c.OriginalURL())
		if !IsAuthenticated(c) {
			return c.Redirect(LoginPath+"?ReturnUrl="+returnURL, fiber.StatusFound)
		}
		if len(allowed) > 0 && !hasAnyRole(GetRoles(c), allowed) {
			return c.Redirect(AccessDeniedPath+"?ReturnUrl="+returnURL, fiber.StatusFound)
		}
		return c.Next()
	}
}

// bearerToken devuelve el token del header Authorization; ok=false si el formato no es Bearer.
func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func setIdentity(c *fiber.Ctx, sub *jwt.Subject) {
	c.Locals(LocalUserID, sub.UserID)
	c.Locals(LocalUserName, sub.UserName)
	c.Locals(LocalEmail, sub.Email)
	c.Locals(LocalRoles, sub.Roles)
}

func hasAnyRole(roles, allowed []string) bool {
	for _, want := range allowed {
		for _, r := range roles {
			if strings.EqualFold(r, want) {
				return true
			}
		}
	}
	return false
}

// IsAuthenticated informa si el request trae una sesión válida.
func IsAuthenticated(c *fiber.Ctx) bool {
	return GetUserID(c) != ""
}

// HasRole informa si el usuario autenticado tiene el rol.
func HasRole(c *fiber.Ctx, role string) bool {
	return hasAnyRole(GetRoles(c), []string{role})
}

// GetUserID devuelve el UserID del contexto (después del middleware de auth).
func GetUserID(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalUserID).(string)
	return s
}

// GetUserName devuelve el nombre de usuario del contexto.
func GetUserName(c *fiber.Ctx) string {
	s, _ := c.Locals(LocalUserName).(string)
	return s
}

// GetRoles devuelve los roles del contexto.
func GetRoles(c *fiber.Ctx) []string {
	r, _ := c.Locals(LocalRoles).([]string)
	return r
}
