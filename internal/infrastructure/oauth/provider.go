// Package oauth implementa el login externo con Google y Facebook sobre golang.org/x/oauth2.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/internal/domain"
)

// ProviderConfig describe un proveedor externo.
type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	CallbackPath string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// profileDecoder traduce la respuesta del endpoint de perfil.
type profileDecoder func(body []byte) (dto.ExternalProfile, error)

// Provider proveedor configurado listo para iniciar y completar el flujo authorization code.
type Provider struct {
	cfg    ProviderConfig
	oauth  *oauth2.Config
	decode profileDecoder
	client *http.Client
}

func newProvider(cfg ProviderConfig, publicURL string, decode profileDecoder) *Provider {
	return &Provider{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  strings.TrimRight(publicURL, "/") + cfg.CallbackPath,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		decode: decode,
	}
}

// Name nombre del proveedor ("Google", "Facebook").
func (p *Provider) Name() string { return p.cfg.Name }

// CallbackPath ruta local a la que vuelve el proveedor.
func (p *Provider) CallbackPath() string { return p.cfg.CallbackPath }

// Config devuelve la configuración con la que se construyó el proveedor.
func (p *Provider) Config() ProviderConfig { return p.cfg }

// RedirectURL URL absoluta de callback.
func (p *Provider) RedirectURL() string { return p.oauth.RedirectURL }

// AuthCodeURL URL del proveedor a la que se redirige al usuario.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange canjea el código por un token y consulta el perfil del usuario.
func (p *Provider) Exchange(ctx context.Context, code string) (*dto.ExternalProfile, error) {
	if p.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	}
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: exchange: %v", domain.ErrExternalLoginFailed, p.cfg.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: userinfo: %v", domain.ErrExternalLoginFailed, p.cfg.Name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read userinfo: %v", domain.ErrExternalLoginFailed, p.cfg.Name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: userinfo status %d", domain.ErrExternalLoginFailed, p.cfg.Name, resp.StatusCode)
	}

	profile, err := p.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decode userinfo: %v", domain.ErrExternalLoginFailed, p.cfg.Name, err)
	}
	if profile.ProviderKey == "" {
		return nil, fmt.Errorf("%w: %s: perfil sin identificador", domain.ErrExternalLoginFailed, p.cfg.Name)
	}
	profile.Provider = p.cfg.Name
	return &profile, nil
}

func decodeGoogle(body []byte) (dto.ExternalProfile, error) {
	var raw struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return dto.ExternalProfile{}, err
	}
	return dto.ExternalProfile{
		ProviderKey:   raw.Sub,
		Email:         raw.Email,
		EmailVerified: raw.Email != "" && raw.EmailVerified,
	}, nil
}

// Graph /me no informa si el email fue verificado: nunca se usa para vincular
// una cuenta local existente.
func decodeFacebook(body []byte) (dto.ExternalProfile, error) {
	var raw struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return dto.ExternalProfile{}, err
	}
	return dto.ExternalProfile{
		ProviderKey: raw.ID,
		Email:       raw.Email,
	}, nil
}
