package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/portal-identidad/internal/application/auth"
	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/oauth"
	"github.com/jhoicas/portal-identidad/pkg/jwt"
)

// externalCookie guarda el nonce que correlaciona el inicio y el callback del login externo.
const externalCookie = "identity.external"

const externalStateTTL = 10 * time.Minute

// AccountPages páginas de cuenta: login local y externo, registro, logout y perfil.
type AccountPages struct {
	uc        *auth.AuthUseCase
	providers *oauth.Registry
	secret    string
	appName   string
	log       zerolog.Logger
}

// NewAccountPages construye el handler de páginas de cuenta.
func NewAccountPages(uc *auth.AuthUseCase, providers *oauth.Registry, jwtSecret, appName string, log zerolog.Logger) *AccountPages {
	return &AccountPages{uc: uc, providers: providers, secret: jwtSecret, appName: appName, log: log}
}

// Pages tabla de páginas de cuenta más los callbacks de los proveedores registrados.
func (h *AccountPages) Pages() []Page {
	pages := []Page{
		{Method: fiber.MethodGet, Path: LoginPath, Handler: h.LoginForm},
		{Method: fiber.MethodPost, Path: LoginPath, Handler: h.Login},
		{Method: fiber.MethodGet, Path: "/Identity/Account/Register", Handler: h.RegisterForm},
		{Method: fiber.MethodPost, Path: "/Identity/Account/Register", Handler: h.Register},
		{Method: fiber.MethodPost, Path: "/Identity/Account/Logout", Handler: h.Logout},
		{Method: fiber.MethodPost, Path: "/Identity/Account/ExternalLogin", Handler: h.ExternalLogin},
		{Method: fiber.MethodGet, Path: AccessDeniedPath, Handler: h.AccessDenied},
		{Method: fiber.MethodGet, Path: "/Identity/Account/Manage", Handler: h.Manage, Authorize: []string{}},
	}
	for _, p := range h.providers.List() {
		pages = append(pages, Page{Method: fiber.MethodGet, Path: p.CallbackPath(), Handler: h.ExternalCallback(p.Name())})
	}
	return pages
}

// LoginForm GET /Identity/Account/Login
func (h *AccountPages) LoginForm(c *fiber.Ctx) error {
	return h.renderLogin(c, fiber.StatusOK, fiber.Map{})
}

// Login POST /Identity/Account/Login
func (h *AccountPages) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return h.renderLogin(c, fiber.StatusBadRequest, fiber.Map{"Error": "Formulario inválido."})
	}
	resp, err := h.uc.Login(c.UserContext(), in)
	if err != nil {
		msg, ok := loginMessage(err)
		if !ok {
			return err
		}
		h.log.Info().Str("login", in.Email).Err(err).Msg("Login local rechazado")
		return h.renderLogin(c, fiber.StatusOK, fiber.Map{"Error": msg, "Email": in.Email})
	}
	setSessionCookie(c, resp, in.RememberMe)
	h.log.Info().Str("user_id", resp.User.ID).Msg("Usuario inició sesión")
	return c.Redirect(safeReturnURL(returnURL(c)), fiber.StatusFound)
}

// RegisterForm GET /Identity/Account/Register
func (h *AccountPages) RegisterForm(c *fiber.Ctx) error {
	return h.renderRegister(c, fiber.StatusOK, fiber.Map{})
}

// Register POST /Identity/Account/Register
func (h *AccountPages) Register(c *fiber.Ctx) error {
	var in dto.RegisterRequest
	if err := c.BodyParser(&in); err != nil {
		return h.renderRegister(c, fiber.StatusBadRequest, fiber.Map{"Errors": []string{"Formulario inválido."}})
	}
	user, err := h.uc.RegisterUser(c.UserContext(), in)
	if err != nil {
		msgs, ok := registerMessages(err)
		if !ok {
			return err
		}
		return h.renderRegister(c, fiber.StatusOK, fiber.Map{"Errors": msgs, "Email": in.Email})
	}
	h.log.Info().Str("user_id", user.ID).Msg("Usuario creó una cuenta nueva con contraseña")

	resp, err := h.uc.Login(c.UserContext(), dto.LoginRequest{Email: in.Email, Password: in.Password})
	if errors.Is(err, domain.ErrEmailNotConfirmed) {
		return h.renderLogin(c, fiber.StatusOK, fiber.Map{
			"Message": "Cuenta creada. Confirme su email para iniciar sesión.",
			"Email":   in.Email,
		})
	}
	if err != nil {
		return err
	}
	setSessionCookie(c, resp, false)
	return c.Redirect(safeReturnURL(returnURL(c)), fiber.StatusFound)
}

// Logout POST /Identity/Account/Logout
func (h *AccountPages) Logout(c *fiber.Ctx) error {
	clearCookie(c, SessionCookie)
	h.log.Info().Str("user_id", GetUserID(c)).Msg("Usuario cerró sesión")
	return c.Redirect(safeReturnURL(returnURL(c)), fiber.StatusFound)
}

// ExternalLogin POST /Identity/Account/ExternalLogin: firma el estado y redirige al proveedor.
func (h *AccountPages) ExternalLogin(c *fiber.Ctx) error {
	name := c.FormValue("provider")
	p, ok := h.providers.Get(name)
	if !ok {
		return h.renderLogin(c, fiber.StatusBadRequest, fiber.Map{"Error": "Proveedor externo no configurado."})
	}
	nonce := uuid.NewString()
	state, err := jwt.GenerateState(h.secret, p.Name(), safeReturnURL(c.FormValue("returnUrl")), nonce, externalStateTTL)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     externalCookie,
		Value:    nonce,
		Path:     "/",
		MaxAge:   int(externalStateTTL.Seconds()),
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(p.AuthCodeURL(state), fiber.StatusFound)
}

// ExternalCallback vuelta del proveedor: valida estado y nonce, canjea el código e inicia sesión.
func (h *AccountPages) ExternalCallback(provider string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if remote := c.Query("error"); remote != "" {
			h.log.Warn().Str("provider", provider).Str("error", remote).Msg("El proveedor externo devolvió un error")
			return h.renderLogin(c, fiber.StatusOK, fiber.Map{"Error": "Error del proveedor externo: " + remote})
		}
		st, err := jwt.ParseState(h.secret, c.Query("state"))
		if err != nil || st.Provider != provider {
			return h.renderLogin(c, fiber.StatusBadRequest, fiber.Map{"Error": "Estado de login externo inválido o expirado."})
		}
		nonce := c.Cookies(externalCookie)
		clearCookie(c, externalCookie)
		if nonce == "" || nonce != st.Nonce {
			return h.renderLogin(c, fiber.StatusBadRequest, fiber.Map{"Error": "Estado de login externo inválido o expirado."})
		}
		p, ok := h.providers.Get(provider)
		if !ok {
			return h.renderLogin(c, fiber.StatusBadRequest, fiber.Map{"Error": "Proveedor externo no configurado."})
		}

		profile, err := p.Exchange(c.UserContext(), c.Query("code"))
		if err != nil {
			h.log.Warn().Str("provider", provider).Err(err).Msg("Falló el canje del código externo")
			return h.renderLogin(c, fiber.StatusOK, fiber.Map{"Error": "No se pudo iniciar sesión con " + provider + "."})
		}
		resp, err := h.uc.ExternalSignIn(c.UserContext(), *profile)
		if err != nil {
			msg, ok := loginMessage(err)
			if !ok {
				return err
			}
			return h.renderLogin(c, fiber.StatusOK, fiber.Map{"Error": msg})
		}
		setSessionCookie(c, resp, false)
		h.log.Info().Str("user_id", resp.User.ID).Str("provider", provider).Msg("Usuario inició sesión con proveedor externo")
		return c.Redirect(safeReturnURL(st.ReturnURL), fiber.StatusFound)
	}
}

// AccessDenied GET /Identity/Account/AccessDenied
func (h *AccountPages) AccessDenied(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "account/access_denied", viewData(c, h.appName, "Acceso denegado", nil))
}

// Manage GET /Identity/Account/Manage (requiere sesión)
func (h *AccountPages) Manage(c *fiber.Ctx) error {
	profile, err := h.uc.Me(c.UserContext(), GetUserID(c))
	if errors.Is(err, domain.ErrUserNotFound) {
		clearCookie(c, SessionCookie)
		return c.Redirect(LoginPath, fiber.StatusFound)
	}
	if err != nil {
		return err
	}
	return render(c, fiber.StatusOK, "account/manage", viewData(c, h.appName, "Mi cuenta", fiber.Map{"Profile": profile}))
}

func (h *AccountPages) renderLogin(c *fiber.Ctx, status int, extra fiber.Map) error {
	extra["ReturnURL"] = safeReturnURL(returnURL(c))
	extra["Providers"] = h.providerNames()
	return render(c, status, "account/login", viewData(c, h.appName, "Iniciar sesión", extra))
}

func (h *AccountPages) renderRegister(c *fiber.Ctx, status int, extra fiber.Map) error {
	extra["ReturnURL"] = safeReturnURL(returnURL(c))
	extra["Providers"] = h.providerNames()
	return render(c, status, "account/register", viewData(c, h.appName, "Registrarse", extra))
}

func (h *AccountPages) providerNames() []string {
	var names []string
	for _, p := range h.providers.List() {
		names = append(names, p.Name())
	}
	return names
}

// loginMessage traduce errores esperados de login a un mensaje; ok=false si es un fallo interno.
func loginMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidInput):
		return "Intento de inicio de sesión no válido.", true
	case errors.Is(err, domain.ErrEmailNotConfirmed):
		return "Debe confirmar su email antes de iniciar sesión.", true
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return "Ya existe una cuenta con ese email. Inicie sesión con su contraseña.", true
	case errors.Is(err, domain.ErrExternalLoginFailed):
		return "No se pudo iniciar sesión con el proveedor externo.", true
	}
	return "", false
}

func registerMessages(err error) ([]string, bool) {
	switch {
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return []string{"El email ya está registrado."}, true
	case errors.Is(err, domain.ErrWeakPassword), errors.Is(err, domain.ErrInvalidInput):
		var msgs []string
		for _, line := range strings.Split(err.Error(), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				msgs = append(msgs, line)
			}
		}
		return msgs, true
	}
	return nil, false
}

func setSessionCookie(c *fiber.Ctx, resp *dto.LoginResponse, persistent bool) {
	ck := &fiber.Cookie{
		Name:     SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   c.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if persistent {
		ck.Expires = resp.ExpiresAt
	}
	c.Cookie(ck)
}

func clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func returnURL(c *fiber.Ctx) string {
	if u := c.Query("ReturnUrl"); u != "" {
		return u
	}
	return c.FormValue("returnUrl")
}

// safeReturnURL solo acepta rutas locales; cualquier otra cosa vuelve al inicio.
func safeReturnURL(u string) string {
	if u == "" || !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return "/"
	}
	return u
}
