package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/internal/application/usecase"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
)

const adminPageSize = 20

// HomeController páginas públicas.
type HomeController struct {
	appName string
}

// NewHomeController construye el controlador Home.
func NewHomeController(appName string) *HomeController {
	return &HomeController{appName: appName}
}

// Pages páginas públicas en la raíz: /, /Privacy y /Error.
func (h *HomeController) Pages() []Page {
	return []Page{
		{Method: fiber.MethodGet, Path: "/", Handler: h.Index},
		{Method: fiber.MethodGet, Path: "/Privacy", Handler: h.Privacy},
		{Method: fiber.MethodGet, Path: "/Error", Handler: h.Error},
	}
}

// Controller acciones de Home.
func (h *HomeController) Controller() Controller {
	return Controller{Name: "Home", Actions: []Action{
		{Name: "Index", Handler: h.Index},
		{Name: "Privacy", Handler: h.Privacy},
		{Name: "Error", Handler: h.Error},
	}}
}

func (h *HomeController) Index(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "pages/index", viewData(c, h.appName, "Inicio", nil))
}

func (h *HomeController) Privacy(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "pages/privacy", viewData(c, h.appName, "Privacidad", nil))
}

func (h *HomeController) Error(c *fiber.Ctx) error {
	return render(c, fiber.StatusOK, "pages/error", viewData(c, h.appName, "Error", nil))
}

// AdminController administración de usuarios (Admin y Manager; exportar solo Admin).
type AdminController struct {
	uc      *usecase.UserUseCase
	appName string
	log     zerolog.Logger
}

// NewAdminController construye el controlador Admin.
func NewAdminController(uc *usecase.UserUseCase, appName string, log zerolog.Logger) *AdminController {
	return &AdminController{uc: uc, appName: appName, log: log}
}

// Controller acciones de Admin.
func (h *AdminController) Controller() Controller {
	return Controller{Name: "Admin", Actions: []Action{
		{Name: "Index", Handler: h.Index, Authorize: []string{entity.RoleAdmin, entity.RoleManager}},
		{Name: "Export", Handler: h.Export, Authorize: []string{entity.RoleAdmin}},
	}}
}

// Index GET /Admin?offset=N
func (h *AdminController) Index(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	users, err := h.uc.List(c.UserContext(), dto.PageRequest{Limit: adminPageSize, Offset: offset})
	if err != nil {
		return err
	}
	roles, err := h.uc.ListRoles(c.UserContext())
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Users":     users,
		"Roles":     roles,
		"CanExport": HasRole(c, entity.RoleAdmin),
	}
	if offset > 0 {
		data["PrevOffset"] = strconv.Itoa(max(offset-adminPageSize, 0))
	}
	if offset+len(users.Items) < users.Page.Total {
		data["NextOffset"] = strconv.Itoa(offset + adminPageSize)
	}
	return render(c, fiber.StatusOK, "admin/index", viewData(c, h.appName, "Usuarios", data))
}

// Export GET /Admin/Export: reporte PDF de todos los usuarios.
func (h *AdminController) Export(c *fiber.Ctx) error {
	pdf, err := h.uc.ExportPDF(c.UserContext())
	if err != nil {
		return err
	}
	h.log.Info().Str("user_id", GetUserID(c)).Int("bytes", len(pdf)).Msg("Reporte de usuarios exportado")
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="usuarios.pdf"`)
	return c.Send(pdf)
}
