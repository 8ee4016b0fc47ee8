package http

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrPagesAlreadyMapped la tabla de páginas solo se registra una vez.
var ErrPagesAlreadyMapped = errors.New("las páginas ya fueron registradas")

// Page ruta de página. Authorize nil = pública; Authorize vacío = cualquier usuario autenticado.
type Page struct {
	Method    string
	Path      string
	Handler   fiber.Handler
	Authorize []string
}

// Action acción de un controlador. Methods vacío = GET.
type Action struct {
	Name      string
	Methods   []string
	Handler   fiber.Handler
	Authorize []string
}

// Controller agrupa acciones bajo un nombre ("Home", "Admin").
type Controller struct {
	Name    string
	Actions []Action
}

// Endpoints registra páginas y rutas de controladores sobre un router y recuerda qué
// combinaciones método + ruta ya están tomadas.
type Endpoints struct {
	router      fiber.Router
	claimed     map[string]string
	pagesMapped bool
}

// NewEndpoints construye el registro sobre el router.
func NewEndpoints(r fiber.Router) *Endpoints {
	return &Endpoints{router: r, claimed: make(map[string]string)}
}

// MapPages registra la tabla de páginas. Una segunda llamada devuelve ErrPagesAlreadyMapped.
func (e *Endpoints) MapPages(pages []Page) error {
	if e.pagesMapped {
		return ErrPagesAlreadyMapped
	}
	for _, p := range pages {
		method := p.Method
		if method == "" {
			method = fiber.MethodGet
		}
		key := routeKey(method, p.Path)
		if owner, dup := e.claimed[key]; dup {
			return fmt.Errorf("página %s %s ya registrada por %s", method, p.Path, owner)
		}
		e.claimed[key] = "page"
		e.router.Add(method, p.Path, withAuthorization(p.Authorize, p.Handler)...)
	}
	e.pagesMapped = true
	return nil
}

// MapControllerRoute expande el patrón convencional para cada acción y registra las rutas.
// Las rutas ya tomadas por páginas se omiten.
func (e *Endpoints) MapControllerRoute(name, pattern string, controllers []Controller) error {
	rp, err := ParseRoutePattern(pattern)
	if err != nil {
		return fmt.Errorf("ruta %q: %w", name, err)
	}
	for _, ctrl := range controllers {
		for _, act := range ctrl.Actions {
			methods := act.Methods
			if len(methods) == 0 {
				methods = []string{fiber.MethodGet}
			}
			for _, path := range rp.Expand(ctrl.Name, act.Name) {
				for _, m := range methods {
					key := routeKey(m, path)
					if _, taken := e.claimed[key]; taken {
						continue
					}
					e.claimed[key] = name + ":" + ctrl.Name + "." + act.Name
					e.router.Add(m, path, withAuthorization(act.Authorize, act.Handler)...)
				}
			}
		}
	}
	return nil
}

// Routes devuelve "METHOD path -> dueño" ordenadas (diagnóstico y tests).
func (e *Endpoints) Routes() []string {
	out := make([]string, 0, len(e.claimed))
	for k, owner := range e.claimed {
		out = append(out, k+" -> "+owner)
	}
	sort.Strings(out)
	return out
}

func withAuthorization(roles []string, h fiber.Handler) []fiber.Handler {
	if roles == nil {
		return []fiber.Handler{h}
	}
	return []fiber.Handler{AuthorizePage(roles...), h}
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + strings.ToLower(path)
}

// RouteSegment un segmento del patrón: literal o parámetro.
type RouteSegment struct {
	Literal  string
	Param    string
	Default  string
	Optional bool
}

func (s RouteSegment) defaultable() bool {
	return s.Param != "" && (s.Optional || s.Default != "")
}

// RoutePattern patrón de ruta convencional, p. ej. "{controller=Home}/{action=Index}/{id?}".
type RoutePattern struct {
	Segments []RouteSegment
}

// ParseRoutePattern valida y descompone el patrón. Exige los parámetros controller y action;
// después de un segmento con valor por defecto u opcional no puede haber uno obligatorio.
func ParseRoutePattern(pattern string) (*RoutePattern, error) {
	trimmed := strings.Trim(strings.TrimSpace(pattern), "/")
	if trimmed == "" {
		return nil, errors.New("patrón vacío")
	}
	rp := &RoutePattern{}
	seen := make(map[string]bool)
	tail := false
	for _, raw := range strings.Split(trimmed, "/") {
		seg, err := parseSegment(raw)
		if err != nil {
			return nil, err
		}
		if seg.Param != "" {
			if seen[seg.Param] {
				return nil, fmt.Errorf("parámetro %q repetido", seg.Param)
			}
			seen[seg.Param] = true
		}
		if seg.defaultable() {
			tail = true
		} else if tail {
			return nil, fmt.Errorf("segmento %q obligatorio después de uno opcional", raw)
		}
		rp.Segments = append(rp.Segments, seg)
	}
	if !seen["controller"] || !seen["action"] {
		return nil, errors.New("el patrón debe incluir {controller} y {action}")
	}
	return rp, nil
}

func parseSegment(raw string) (RouteSegment, error) {
	if raw == "" {
		return RouteSegment{}, errors.New("segmento vacío")
	}
	if !strings.HasPrefix(raw, "{") {
		if strings.ContainsAny(raw, "{}") {
			return RouteSegment{}, fmt.Errorf("segmento %q mal formado", raw)
		}
		return RouteSegment{Literal: raw}, nil
	}
	if !strings.HasSuffix(raw, "}") {
		return RouteSegment{}, fmt.Errorf("segmento %q mal formado", raw)
	}
	body := raw[1 : len(raw)-1]
	seg := RouteSegment{}
	if name, def, ok := strings.Cut(body, "="); ok {
		seg.Param, seg.Default = strings.TrimSpace(name), strings.TrimSpace(def)
		if seg.Default == "" {
			return RouteSegment{}, fmt.Errorf("segmento %q: valor por defecto vacío", raw)
		}
	} else if name, ok := strings.CutSuffix(body, "?"); ok {
		seg.Param, seg.Optional = strings.TrimSpace(name), true
	} else {
		seg.Param = strings.TrimSpace(body)
	}
	if seg.Param == "" || strings.ContainsAny(seg.Param, "{}=?/") {
		return RouteSegment{}, fmt.Errorf("segmento %q mal formado", raw)
	}
	return seg, nil
}

// Expand devuelve las rutas fiber que atienden a controller/action, de la más corta a la más larga.
// Un sufijo de segmentos se puede omitir si cada segmento omitido es opcional o su valor por
// defecto coincide: "Home","Index" produce "/", "/Home" y "/Home/Index/:id?".
func (rp *RoutePattern) Expand(controller, action string) []string {
	parts := make([]string, len(rp.Segments))
	omittable := make([]bool, len(rp.Segments))
	for i, s := range rp.Segments {
		switch s.Param {
		case "":
			parts[i] = s.Literal
		case "controller":
			parts[i] = controller
			omittable[i] = strings.EqualFold(s.Default, controller)
		case "action":
			parts[i] = action
			omittable[i] = strings.EqualFold(s.Default, action)
		default:
			parts[i] = ":" + s.Param
			if s.defaultable() {
				parts[i] += "?"
			}
			omittable[i] = s.defaultable()
		}
	}

	// La ruta completa cubre también la variante sin los parámetros opcionales finales.
	full := len(parts)
	for full > 0 && rp.Segments[full-1].Param != "" &&
		rp.Segments[full-1].Param != "controller" && rp.Segments[full-1].Param != "action" &&
		omittable[full-1] {
		full--
	}

	var paths []string
	for k := 0; k < full; k++ {
		if allTrue(omittable[k:full]) {
			paths = append(paths, "/"+strings.Join(parts[:k], "/"))
		}
	}
	paths = append(paths, "/"+strings.Join(parts, "/"))
	return paths
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}
