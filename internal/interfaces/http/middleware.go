package http

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// RequestLogger registra cada request. Si la cadena devuelve error lo resuelve con el
// ErrorHandler de la app para loguear el status real.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		ev := log.Debug()
		if status >= fiber.StatusInternalServerError {
			ev = log.Error().Err(chainErr)
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", requestID(c)).
			Str("ip", c.IP()).
			Msg("http request")
		return nil
	}
}

// HSTS agrega Strict-Transport-Security a las respuestas HTTPS, salvo para hosts locales.
func HSTS(maxAge time.Duration) fiber.Handler {
	value := "max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(c *fiber.Ctx) error {
		if c.Protocol() == "https" && !isLoopbackHost(hostOnly(c.Hostname())) {
			c.Set(fiber.HeaderStrictTransportSecurity, value)
		}
		return c.Next()
	}
}

// HTTPSRedirection redirige (307) las peticiones HTTP al puerto HTTPS configurado.
// Con httpsPort 0 no hay a dónde redirigir: avisa una vez y deja pasar.
func HTTPSRedirection(httpsPort int, log zerolog.Logger) fiber.Handler {
	if httpsPort <= 0 {
		log.Warn().Msg("No se pudo determinar el puerto HTTPS para la redirección")
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return func(c *fiber.Ctx) error {
		if c.Protocol() == "https" {
			return c.Next()
		}
		host := hostOnly(c.Hostname())
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
		if httpsPort != 443 {
			host = fmt.Sprintf("%s:%d", host, httpsPort)
		}
		return c.Redirect("https://"+host+c.OriginalURL(), fiber.StatusTemporaryRedirect)
	}
}

// hostOnly quita el puerto (y los corchetes de IPv6) del host.
func hostOnly(hostport string) string {
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	return strings.Trim(hostport, "[]")
}

func isLoopbackHost(host string) bool {
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func requestID(c *fiber.Ctx) string {
	s, _ := c.Locals("requestid").(string)
	return s
}
