package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/portal-identidad/internal/application/auth"
	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/internal/application/seed"
	"github.com/jhoicas/portal-identidad/internal/application/usecase"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/memory"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/oauth"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/portal-identidad/internal/interfaces/http"
	"github.com/jhoicas/portal-identidad/pkg/config"
	pkgjwt "github.com/jhoicas/portal-identidad/pkg/jwt"
)

const adminPassword = "Admin@321."

type fakeMigrator struct {
	pending int
	applied int
	err     error
}

func (m *fakeMigrator) Apply(context.Context) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.applied += m.pending
	n := m.pending
	m.pending = 0
	return n, nil
}

func (m *fakeMigrator) PendingCount(context.Context) (int, error) { return m.pending, nil }

type testEnv struct {
	app   *fiber.App
	store *memory.Store
}

func newTestEnv(t *testing.T, opts apphttp.Options, deps apphttp.Deps) *testEnv {
	t.Helper()
	store := memory.NewStore()
	sopts := seed.DefaultOptions()
	sopts.AdminPassword = adminPassword
	_, err := seed.NewSeeder(store, sopts, identity.DefaultPasswordPolicy(), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	opts.JWTSecret = testJWTSecret
	opts.AppName = "portal-test"
	deps.Log = zerolog.Nop()
	deps.Auth = auth.NewAuthUseCase(store, auth.JWTConfig{Secret: testJWTSecret, ExpMinutes: testExpMin, Issuer: testIssuer},
		auth.Options{Policy: identity.DefaultPasswordPolicy()})
	deps.Users = usecase.NewUserUseCase(store, pdf.NewMarotoPDFGenerator("portal-test"))

	app, err := apphttp.NewApp(opts, deps)
	require.NoError(t, err)
	return &testEnv{app: app, store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// form arma un POST de formulario con el token antifalsificación, obtenido
// como lo haría el navegador: GET del login y cookie de vuelta.
func (e *testEnv) form(t *testing.T, target string, values url.Values) *http.Request {
	t.Helper()
	ck := e.antiforgeryCookie(t)
	values.Set(apphttp.CSRFField, ck.Value)
	req := formRequest(target, values)
	req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	return req
}

func (e *testEnv) antiforgeryCookie(t *testing.T) *http.Cookie {
	t.Helper()
	resp := e.do(t, httptest.NewRequest(http.MethodGet, apphttp.LoginPath, nil))
	for _, c := range resp.Cookies() {
		if c.Name == apphttp.CSRFCookie {
			return c
		}
	}
	require.FailNow(t, "el login no emitió la cookie antifalsificación")
	return nil
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == apphttp.SessionCookie {
			return c
		}
	}
	return nil
}

func withSession(t *testing.T, req *http.Request, roles ...string) *http.Request {
	t.Helper()
	req.AddCookie(&http.Cookie{Name: apphttp.SessionCookie, Value: tokenWithRoles(t, roles...)})
	return req
}

// ──────────────────────────────────────────────────────────────────────────────
// Páginas y controladores
// ──────────────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"status":"ok"`)
}

func TestHome_RutaConvencional(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	for _, path := range []string{"/", "/Home", "/Home/Index", "/Home/Index/7"} {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Contains(t, readBody(t, resp), "Bienvenido", path)
	}
	for _, path := range []string{"/Privacy", "/Home/Privacy", "/Error"} {
		resp := env.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestAdmin_AnonimoVaAlLogin(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/Admin", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/Identity/Account/Login?ReturnUrl=%2FAdmin", resp.Header.Get("Location"))
}

func TestAdmin_SinRolVaAAccesoDenegado(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, withSession(t, httptest.NewRequest(http.MethodGet, "/Admin", nil), "User"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), apphttp.AccessDeniedPath))
}

func TestAdmin_ManagerVeListadoPeroNoExporta(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})

	resp := env.do(t, withSession(t, httptest.NewRequest(http.MethodGet, "/Admin", nil), "Manager"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := readBody(t, resp)
	assert.Contains(t, html, "admin@admin.com")
	assert.NotContains(t, html, "/Admin/Export")

	resp = env.do(t, withSession(t, httptest.NewRequest(http.MethodGet, "/Admin/Export", nil), "Manager"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), apphttp.AccessDeniedPath))
}

func TestAdmin_ExportaPDF(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, withSession(t, httptest.NewRequest(http.MethodGet, "/Admin/Export", nil), "Admin"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "usuarios.pdf")
	assert.True(t, strings.HasPrefix(readBody(t, resp), "%PDF"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Cuenta local
// ──────────────────────────────────────────────────────────────────────────────

func TestLogin_AdminSembradoRedirigeYEmiteCookie(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})

	resp := env.do(t, env.form(t, "/Identity/Account/Login?ReturnUrl=%2FAdmin", url.Values{
		"email": {"admin@admin.com"}, "password": {adminPassword},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/Admin", resp.Header.Get("Location"))
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)

	sub, err := pkgjwt.Parse(testJWTSecret, ck.Value)
	require.NoError(t, err)
	assert.Contains(t, sub.Roles, "Admin")

	req := httptest.NewRequest(http.MethodGet, "/Admin", nil)
	req.AddCookie(&http.Cookie{Name: apphttp.SessionCookie, Value: ck.Value})
	resp = env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin_CredencialesInvalidas(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, env.form(t, "/Identity/Account/Login", url.Values{
		"email": {"admin@admin.com"}, "password": {"incorrecta"},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
	assert.Contains(t, readBody(t, resp), "Intento de inicio de sesión no válido.")
}

func TestLogin_ReturnUrlExternaSeIgnora(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, env.form(t, "/Identity/Account/Login?ReturnUrl=%2F%2Fevil.example.com", url.Values{
		"email": {"admin@admin.com"}, "password": {adminPassword},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestRegister_CreaCuentaEIniciaSesion(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, env.form(t, "/Identity/Account/Register", url.Values{
		"email": {"ana@correo.com"}, "password": {"Clave#123"}, "confirm_password": {"Clave#123"},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	sub, err := pkgjwt.Parse(testJWTSecret, ck.Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, sub.Roles)

	resp = env.do(t, env.form(t, "/Identity/Account/Register", url.Values{
		"email": {"ana@correo.com"}, "password": {"Clave#123"},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "El email ya está registrado.")
}

func TestManage_RequiereSesion(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/Identity/Account/Manage", nil))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), apphttp.LoginPath)
}

func TestRegister_PasswordMayorA72BytesEsValidacion(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	long := "Aa1#" + strings.Repeat("x", 80)
	resp := env.do(t, env.form(t, "/Identity/Account/Register", url.Values{
		"email": {"largo@correo.com"}, "password": {long}, "confirm_password": {long},
	}))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
	assert.Contains(t, readBody(t, resp), "no puede superar 72 bytes")
}

// La configuración por defecto de development (sin JWT_SECRET) permite iniciar sesión.
func TestLogin_ConfiguracionPorDefectoDeDesarrollo(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SEED__ADMINPASSWORD", adminPassword)
	cfg, err := config.LoadFrom(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	store := memory.NewStore()
	policy := identity.DefaultPasswordPolicy()
	_, err = seed.NewSeeder(store, seed.Options{
		Roles:         cfg.Seed.Roles,
		AdminEmail:    cfg.Seed.AdminEmail,
		AdminPassword: cfg.Seed.AdminPassword,
	}, policy, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	app, err := apphttp.NewApp(apphttp.Options{
		Development: cfg.App.IsDevelopment(),
		AppName:     cfg.App.Name,
		JWTSecret:   cfg.JWT.Secret,
	}, apphttp.Deps{
		Auth: auth.NewAuthUseCase(store, auth.JWTConfig{
			Secret:     cfg.JWT.Secret,
			ExpMinutes: cfg.JWT.Expiration,
			Issuer:     cfg.JWT.Issuer,
		}, auth.Options{Policy: policy}),
		Users: usecase.NewUserUseCase(store, pdf.NewMarotoPDFGenerator(cfg.App.Name)),
		Log:   zerolog.Nop(),
	})
	require.NoError(t, err)
	env := &testEnv{app: app, store: store}

	resp := env.do(t, env.form(t, apphttp.LoginPath, url.Values{
		"email": {cfg.Seed.AdminEmail}, "password": {adminPassword},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	sub, err := pkgjwt.Parse(cfg.JWT.Secret, ck.Value)
	require.NoError(t, err)
	assert.Contains(t, sub.Roles, "Admin")
}

// ──────────────────────────────────────────────────────────────────────────────
// Antifalsificación
// ──────────────────────────────────────────────────────────────────────────────

func TestAntiforgery_FormularioLlevaElTokenDeLaCookie(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, httptest.NewRequest(http.MethodGet, apphttp.LoginPath, nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ck *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == apphttp.CSRFCookie {
			ck = c
		}
	}
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Contains(t, readBody(t, resp), `name="_csrf" value="`+ck.Value+`"`)
}

func TestAntiforgery_PostSinTokenSeRechaza(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	creds := url.Values{"email": {"admin@admin.com"}, "password": {adminPassword}}

	// Sin cookie ni campo.
	resp := env.do(t, formRequest(apphttp.LoginPath, creds))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	// Cookie válida pero el campo no coincide.
	ck := env.antiforgeryCookie(t)
	forged := url.Values{"email": creds["email"], "password": creds["password"], apphttp.CSRFField: {"otro"}}
	req := formRequest(apphttp.LoginPath, forged)
	req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	resp = env.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))

	// Cerrar sesión desde otro sitio tampoco procede.
	resp = env.do(t, withSession(t, formRequest("/Identity/Account/Logout", url.Values{}), "User"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, formRequest("/Identity/Account/ExternalLogin", url.Values{"provider": {"Google"}}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAntiforgery_LogoutConTokenCierraSesion(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, withSession(t, env.form(t, "/Identity/Account/Logout", url.Values{}), "User"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
}

// ──────────────────────────────────────────────────────────────────────────────
// Login externo
// ──────────────────────────────────────────────────────────────────────────────

func fakeGoogle(t *testing.T) *oauth.Registry {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "codigo-ok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "g-42", "email": "luis@gmail.com", "email_verified": true, "name": "Luis",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		HTTP:   config.HTTPConfig{PublicURL: "http://localhost:8080"},
		Google: config.GoogleAuthSetting{ClientID: "gid", ClientSecret: "gsecret", CallbackPath: "/signin-google"},
	}
	return oauth.NewRegistry(cfg, zerolog.Nop(), oauth.WithEndpointOverride(func(pc *oauth.ProviderConfig) {
		pc.TokenURL = srv.URL + "/token"
		pc.UserInfoURL = srv.URL + "/userinfo"
	}))
}

func startExternal(t *testing.T, env *testEnv) (state, nonce string) {
	t.Helper()
	resp := env.do(t, env.form(t, "/Identity/Account/ExternalLogin", url.Values{
		"provider": {"Google"}, "returnUrl": {"/Identity/Account/Manage"},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "gid", loc.Query().Get("client_id"))
	for _, c := range resp.Cookies() {
		if c.Name == "identity.external" {
			nonce = c.Value
		}
	}
	require.NotEmpty(t, nonce)
	return loc.Query().Get("state"), nonce
}

func TestExternalLogin_FlujoCompleto(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{Providers: fakeGoogle(t)})

	resp := env.do(t, httptest.NewRequest(http.MethodGet, apphttp.LoginPath, nil))
	assert.Contains(t, readBody(t, resp), `value="Google"`)

	state, nonce := startExternal(t, env)
	req := httptest.NewRequest(http.MethodGet, "/signin-google?code=codigo-ok&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "identity.external", Value: nonce})
	resp = env.do(t, req)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/Identity/Account/Manage", resp.Header.Get("Location"))

	ck := sessionCookie(resp)
	require.NotNil(t, ck)
	sub, err := pkgjwt.Parse(testJWTSecret, ck.Value)
	require.NoError(t, err)
	assert.Equal(t, "luis@gmail.com", sub.Email)
}

func TestExternalLogin_NonceDistintoSeRechaza(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{Providers: fakeGoogle(t)})
	state, _ := startExternal(t, env)

	req := httptest.NewRequest(http.MethodGet, "/signin-google?code=codigo-ok&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "identity.external", Value: "otro"})
	resp := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
}

func TestExternalLogin_ProveedorNoConfigurado(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	resp := env.do(t, env.form(t, "/Identity/Account/ExternalLogin", url.Values{"provider": {"Facebook"}}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// API JSON
// ──────────────────────────────────────────────────────────────────────────────

func TestAPI_LoginYListadoAdmin(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"admin@admin.com","password":"`+adminPassword+`"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login dto.LoginResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp = env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list dto.UserListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 1, list.Page.Total)

	req = httptest.NewRequest(http.MethodGet, "/api/account/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp = env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_AdminRequiereRol(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+tokenWithRoles(t, "User"))
	resp := env.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAPI_RegistroDuplicado409(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"admin@admin.com","password":"Clave#123"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := env.do(t, req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_ErrorInternoNoExponeDetalle(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	env.store.Fail = func(op string) error {
		if op == "users.list" {
			return errors.New(`pq: relation "users" does not exist`)
		}
		return nil
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+tokenWithRoles(t, "Admin"))
	resp := env.do(t, req)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var out dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "INTERNAL", out.Code)
	assert.Equal(t, "error interno", out.Message)
	assert.NotContains(t, out.Message, "relation")
}

// ──────────────────────────────────────────────────────────────────────────────
// Pipeline: errores, HSTS, HTTPS y migraciones
// ──────────────────────────────────────────────────────────────────────────────

func TestErrores_ProduccionMuestraPaginaGenerica(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{})
	env.app.Get("/boom", func(c *fiber.Ctx) error { panic("fallo inesperado") })

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	html := readBody(t, resp)
	assert.Contains(t, html, "Error.")
	assert.NotContains(t, html, "fallo inesperado")
}

func TestErrores_DesarrolloMuestraDetalle(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{Development: true}, apphttp.Deps{})
	env.app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("detalle interno") })

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "detalle interno")
}

func TestErrores_DesarrolloOfreceMigrarSiFaltaEsquema(t *testing.T) {
	mig := &fakeMigrator{pending: 1}
	env := newTestEnv(t, apphttp.Options{Development: true}, apphttp.Deps{Migrator: mig})
	env.app.Get("/sin-tablas", func(c *fiber.Ctx) error {
		return &pgconn.PgError{Code: "42P01", Message: `relation "users" does not exist`}
	})

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/sin-tablas", nil))
	html := readBody(t, resp)
	assert.Contains(t, html, "Faltan migraciones")
	assert.Contains(t, html, apphttp.MigrationsPath)
	assert.Contains(t, html, "Hay 1 migración")
}

func TestMigraciones_EndpointDeDesarrollo(t *testing.T) {
	mig := &fakeMigrator{pending: 2}
	env := newTestEnv(t, apphttp.Options{Development: true}, apphttp.Deps{Migrator: mig})
	resp := env.do(t, httptest.NewRequest(http.MethodPost, apphttp.MigrationsPath, nil))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 2, mig.applied)

	failing := newTestEnv(t, apphttp.Options{Development: true}, apphttp.Deps{Migrator: &fakeMigrator{err: errors.New("lock")}})
	resp = failing.do(t, httptest.NewRequest(http.MethodPost, apphttp.MigrationsPath, nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	noDB := newTestEnv(t, apphttp.Options{Development: true}, apphttp.Deps{})
	resp = noDB.do(t, httptest.NewRequest(http.MethodPost, apphttp.MigrationsPath, nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMigraciones_NoExisteFueraDeDesarrollo(t *testing.T) {
	mig := &fakeMigrator{pending: 1}
	env := newTestEnv(t, apphttp.Options{}, apphttp.Deps{Migrator: mig})
	resp := env.do(t, httptest.NewRequest(http.MethodPost, apphttp.MigrationsPath, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, mig.applied)
}

func TestHSTS(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{HSTSMaxAge: 30}, apphttp.Deps{})

	req := httptest.NewRequest(http.MethodGet, "http://portal.example.com/Home/Privacy", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp := env.do(t, req)
	assert.Equal(t, "max-age=2592000", resp.Header.Get("Strict-Transport-Security"))

	req = httptest.NewRequest(http.MethodGet, "http://localhost/Home/Privacy", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp = env.do(t, req)
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"), "localhost queda excluido")

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "http://portal.example.com/Home/Privacy", nil))
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"), "solo sobre HTTPS")

	dev := newTestEnv(t, apphttp.Options{Development: true, HSTSMaxAge: 30}, apphttp.Deps{})
	req = httptest.NewRequest(http.MethodGet, "http://portal.example.com/Home/Privacy", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp = dev.do(t, req)
	assert.Empty(t, resp.Header.Get("Strict-Transport-Security"), "development no envía HSTS")
}

func TestHTTPSRedirection(t *testing.T) {
	env := newTestEnv(t, apphttp.Options{HTTPSPort: 5001}, apphttp.Deps{})

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "http://portal.example.com/Home/Privacy?x=1", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "https://portal.example.com:5001/Home/Privacy?x=1", resp.Header.Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "http://portal.example.com/Home/Privacy", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp = env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
