package oauth

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/pkg/config"
)

// Endpoints públicos de los proveedores.
const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	facebookAuthURL     = "https://www.facebook.com/v18.0/dialog/oauth"
	facebookTokenURL    = "https://graph.facebook.com/v18.0/oauth/access_token"
	facebookUserInfoURL = "https://graph.facebook.com/v18.0/me?fields=id,name,email"
)

// GoogleConfig arma la configuración del proveedor Google con los valores tal como llegan.
func GoogleConfig(s config.GoogleAuthSetting) ProviderConfig {
	return ProviderConfig{
		Name:         entity.ProviderGoogle,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		CallbackPath: callbackPath(s.CallbackPath, "/signin-google"),
		AuthURL:      googleAuthURL,
		TokenURL:     googleTokenURL,
		UserInfoURL:  googleUserInfoURL,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// FacebookConfig arma la configuración del proveedor Facebook con los valores tal como llegan.
func FacebookConfig(s config.FacebookAuthSetting) ProviderConfig {
	return ProviderConfig{
		Name:         entity.ProviderFacebook,
		ClientID:     s.AppID,
		ClientSecret: s.AppSecret,
		CallbackPath: callbackPath(s.CallbackPath, "/signin-facebook"),
		AuthURL:      facebookAuthURL,
		TokenURL:     facebookTokenURL,
		UserInfoURL:  facebookUserInfoURL,
		Scopes:       []string{"email", "public_profile"},
	}
}

func callbackPath(p, def string) string {
	if p == "" {
		return def
	}
	if p[0] != '/' {
		return "/" + p
	}
	return p
}

// Registry proveedores habilitados, en orden de registro.
type Registry struct {
	providers []*Provider
}

// Option ajusta el registro (tests y clientes HTTP propios).
type Option func(*registryOptions)

type registryOptions struct {
	client   *http.Client
	override func(*ProviderConfig)
}

// WithHTTPClient usa el cliente dado para el canje del código y el perfil.
func WithHTTPClient(c *http.Client) Option {
	return func(o *registryOptions) { o.client = c }
}

// WithEndpointOverride permite cambiar URLs de los proveedores antes de construirlos.
func WithEndpointOverride(fn func(*ProviderConfig)) Option {
	return func(o *registryOptions) { o.override = fn }
}

// NewRegistry registra Google y Facebook si tienen id y secreto; si no, lo informa y los omite.
func NewRegistry(cfg *config.Config, log zerolog.Logger, opts ...Option) *Registry {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{}
	candidates := []struct {
		pc     ProviderConfig
		decode profileDecoder
	}{
		{GoogleConfig(cfg.Google), decodeGoogle},
		{FacebookConfig(cfg.Facebook), decodeFacebook},
	}
	for _, c := range candidates {
		if c.pc.ClientID == "" || c.pc.ClientSecret == "" {
			log.Warn().Str("provider", c.pc.Name).Msg("Proveedor externo sin credenciales; no se registra")
			continue
		}
		if o.override != nil {
			o.override(&c.pc)
		}
		p := newProvider(c.pc, cfg.HTTP.PublicURL, c.decode)
		p.client = o.client
		r.providers = append(r.providers, p)
		log.Info().Str("provider", c.pc.Name).Str("callback", p.RedirectURL()).Msg("Proveedor externo registrado")
	}
	return r
}

// Get busca un proveedor por nombre.
func (r *Registry) Get(name string) (*Provider, bool) {
	if r == nil {
		return nil, false
	}
	for _, p := range r.providers {
		if p.cfg.Name == name {
			return p, true
		}
	}
	return nil, false
}

// List proveedores habilitados.
func (r *Registry) List() []*Provider {
	if r == nil {
		return nil
	}
	return r.providers
}
