package http

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"

	"github.com/jhoicas/portal-identidad/internal/application/auth"
	"github.com/jhoicas/portal-identidad/internal/application/usecase"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/oauth"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/postgres"
)

// DefaultRoute patrón convencional de controladores.
const DefaultRoute = "{controller=Home}/{action=Index}/{id?}"

// CSRFField campo de formulario y clave de contexto del token antifalsificación.
const CSRFField = "_csrf"

// CSRFCookie cookie que acompaña al token (double submit).
const CSRFCookie = "identity.antiforgery"

// MigrationsPath endpoint de desarrollo que aplica las migraciones pendientes.
const MigrationsPath = "/ApplyDatabaseMigrations"

// Migrator lo que la app necesita del runner de migraciones.
type Migrator interface {
	Apply(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
}

// Options configuración del pipeline HTTP.
type Options struct {
	Development bool
	AppName     string
	HTTPSPort   int
	HSTSMaxAge  int // días
	WebRoot     string
	SwaggerFile string
	JWTSecret   string
}

// Deps servicios que usan las páginas y la API.
type Deps struct {
	Auth      *auth.AuthUseCase
	Users     *usecase.UserUseCase
	Providers *oauth.Registry
	Migrator  Migrator // nil cuando no hay base de datos
	Log       zerolog.Logger
}

// NewApp arma la aplicación con el pipeline en orden fijo:
// request id, log, (migraciones en dev | HSTS fuera de dev), recover, redirección HTTPS,
// estáticos, autenticación, antifalsificación, health/docs, páginas, controladores y API.
func NewApp(opts Options, deps Deps) (*fiber.App, error) {
	engine, err := NewViewEngine()
	if err != nil {
		return nil, err
	}
	if opts.AppName == "" {
		opts.AppName = "portal-identidad"
	}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
		Views:        engine,
		ErrorHandler: errorHandler(opts, deps),
	})

	app.Use(requestid.New())
	app.Use(RequestLogger(deps.Log))
	if opts.Development {
		app.Post(MigrationsPath, applyMigrations(deps.Migrator, deps.Log))
	} else {
		app.Use(HSTS(time.Duration(opts.HSTSMaxAge) * 24 * time.Hour))
	}
	app.Use(recover.New())
	app.Use(HTTPSRedirection(opts.HTTPSPort, deps.Log))
	if opts.WebRoot != "" {
		app.Static("/", opts.WebRoot)
	}
	app.Use(Authenticate(opts.JWTSecret))
	app.Use(Antiforgery(opts.HTTPSPort > 0, deps.Log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": opts.AppName})
	})
	app.Get("/api/docs.json", func(c *fiber.Ctx) error {
		doc, err := swag.ReadDoc()
		if err != nil {
			return fiber.ErrNotFound
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(doc)
	})
	// Swagger UI en local: http://localhost:<port>/docs
	if opts.Development && opts.SwaggerFile != "" {
		if _, err := os.Stat(opts.SwaggerFile); err == nil {
			app.Use(swagger.New(swagger.Config{
				BasePath: "/",
				FilePath: opts.SwaggerFile,
				Path:     "docs",
				Title:    opts.AppName + " API",
			}))
		}
	}

	endpoints := NewEndpoints(app)
	home := NewHomeController(opts.AppName)
	account := NewAccountPages(deps.Auth, deps.Providers, opts.JWTSecret, opts.AppName, deps.Log)
	if err := endpoints.MapPages(append(home.Pages(), account.Pages()...)); err != nil {
		return nil, err
	}
	err = endpoints.MapControllerRoute("default", DefaultRoute, []Controller{
		home.Controller(),
		NewAdminController(deps.Users, opts.AppName, deps.Log).Controller(),
	})
	if err != nil {
		return nil, err
	}

	Router(app, RouterDeps{AuthUC: deps.Auth, UserUC: deps.Users, JWTSecret: opts.JWTSecret, Log: deps.Log})

	deps.Log.Debug().Strs("routes", endpoints.Routes()).Msg("Rutas de páginas registradas")
	return app, nil
}

// Antiforgery exige el token en los POST de formularios con sesión por cookie.
// La API usa Bearer y queda fuera.
func Antiforgery(secure bool, log zerolog.Logger) fiber.Handler {
	return csrf.New(csrf.Config{
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/api/") || c.Path() == "/health"
		},
		KeyLookup:      "form:" + CSRFField,
		CookieName:     CSRFCookie,
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
		Expiration:     2 * time.Hour,
		ContextKey:     CSRFField,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Warn().Err(err).Str("path", c.Path()).Msg("Token antifalsificación rechazado")
			return fiber.NewError(fiber.StatusForbidden, "token antifalsificación inválido")
		},
	})
}

// applyMigrations POST /ApplyDatabaseMigrations (solo development).
func applyMigrations(m Migrator, log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Status(fiber.StatusBadRequest).SendString("No hay base de datos configurada.")
		}
		n, err := m.Apply(c.UserContext())
		if err != nil {
			log.Error().Err(err).Msg("Falló la aplicación de migraciones")
			return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
		}
		log.Info().Int("applied", n).Msg("Migraciones aplicadas desde el navegador")
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// errorHandler en development muestra el detalle (y ofrece migrar si falta el esquema);
// fuera de development muestra la página de error genérica.
func errorHandler(opts Options, deps Deps) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		var renderErr error
		if opts.Development {
			extra := fiber.Map{
				"Method": c.Method(),
				"Path":   c.Path(),
				"Error":  err.Error(),
			}
			if postgres.IsUndefinedTable(err) {
				extra["MissingSchema"] = true
				if deps.Migrator != nil {
					if n, perr := deps.Migrator.PendingCount(c.UserContext()); perr == nil {
						extra["Pending"] = n
					}
				}
			}
			renderErr = render(c, code, "pages/dev_error", viewData(c, opts.AppName, "Error", extra))
		} else {
			renderErr = render(c, code, "pages/error", viewData(c, opts.AppName, "Error", nil))
		}
		if renderErr != nil {
			return c.Status(code).SendString(fiber.ErrInternalServerError.Message)
		}
		return nil
	}
}
