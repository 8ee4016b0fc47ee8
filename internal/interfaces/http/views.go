package http

import (
	"embed"
	"io/fs"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"

	"github.com/jhoicas/portal-identidad/internal/domain/entity"
)

//go:embed views
var viewsFS embed.FS

const mainLayout = "layouts/main"

// NewViewEngine carga las plantillas embebidas en el binario.
func NewViewEngine() (*html.Engine, error) {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(nethttp.FS(sub), ".html")
	engine.AddFunc("join", strings.Join)
	return engine, nil
}

// viewUser identidad disponible en todas las vistas.
type viewUser struct {
	Authenticated bool
	UserName      string
	Roles         []string
	CanAdmin      bool
}

// viewData arma los datos comunes de layout y los combina con los de la página.
func viewData(c *fiber.Ctx, appName, title string, extra fiber.Map) fiber.Map {
	data := fiber.Map{
		"Title":     title,
		"AppName":   appName,
		"Year":      time.Now().Year(),
		"RequestID": requestID(c),
		"CSRF":      c.Locals(CSRFField),
		"User": viewUser{
			Authenticated: IsAuthenticated(c),
			UserName:      GetUserName(c),
			Roles:         GetRoles(c),
			CanAdmin:      HasRole(c, entity.RoleAdmin) || HasRole(c, entity.RoleManager),
		},
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// render dibuja una vista dentro del layout principal.
func render(c *fiber.Ctx, status int, view string, data fiber.Map) error {
	return c.Status(status).Render(view, data, mainLayout)
}
