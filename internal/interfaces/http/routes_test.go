package http_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/portal-identidad/internal/interfaces/http"
)

func TestParseRoutePattern_Expand(t *testing.T) {
	rp, err := apphttp.ParseRoutePattern(apphttp.DefaultRoute)
	require.NoError(t, err)

	assert.Equal(t, []string{"/", "/Home", "/Home/Index/:id?"}, rp.Expand("Home", "Index"))
	assert.Equal(t, []string{"/Admin", "/Admin/Index/:id?"}, rp.Expand("Admin", "Index"))
	assert.Equal(t, []string{"/Admin/Export/:id?"}, rp.Expand("Admin", "Export"))
}

func TestParseRoutePattern_Errores(t *testing.T) {
	cases := map[string]string{
		"sin controlador":         "{action=Index}/{id?}",
		"sin acción":              "{controller=Home}/{id?}",
		"segmento duplicado":      "{controller}/{action}/{controller}",
		"requerido tras opcional": "{controller=Home}/{id?}/{action}",
		"llave sin cerrar":        "{controller=Home/{action}",
	}
	for name, pattern := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := apphttp.ParseRoutePattern(pattern)
			assert.Error(t, err)
		})
	}
}

func ok(c *fiber.Ctx) error { return c.SendString(c.Path()) }

func TestMapPages_SegundaLlamadaFalla(t *testing.T) {
	e := apphttp.NewEndpoints(fiber.New())
	pages := []apphttp.Page{{Path: "/Identity/Account/Login", Handler: ok}}
	require.NoError(t, e.MapPages(pages))
	assert.ErrorIs(t, e.MapPages(pages), apphttp.ErrPagesAlreadyMapped)
}

func TestMapPages_RutaDuplicadaFalla(t *testing.T) {
	e := apphttp.NewEndpoints(fiber.New())
	err := e.MapPages([]apphttp.Page{
		{Path: "/Identity/Account/Login", Handler: ok},
		{Method: fiber.MethodGet, Path: "/identity/account/login", Handler: ok},
	})
	assert.Error(t, err)
}

// Una página ya registrada en "/" tiene prioridad sobre la acción convencional Home/Index.
func TestMapControllerRoute_PaginaTienePrioridad(t *testing.T) {
	app := fiber.New()
	e := apphttp.NewEndpoints(app)
	require.NoError(t, e.MapPages([]apphttp.Page{{Path: "/", Handler: func(c *fiber.Ctx) error {
		return c.SendString("página")
	}}}))
	require.NoError(t, e.MapControllerRoute("default", apphttp.DefaultRoute, []apphttp.Controller{{
		Name: "Home",
		Actions: []apphttp.Action{{Name: "Index", Handler: func(c *fiber.Ctx) error {
			return c.SendString("controlador " + c.Params("id", "-"))
		}}},
	}}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "página", readBody(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/Home/Index/9", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, "controlador 9", readBody(t, resp))

	assert.Contains(t, e.Routes(), "GET / -> page")
}
