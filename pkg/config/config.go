package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Entornos reconocidos por APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config agrupa la configuración de la aplicación. Se construye una sola vez al arrancar
// y se pasa por referencia al punto de entrada; nadie la modifica después.
type Config struct {
	App      AppConfig
	DB       DBConfig
	JWT      JWTConfig
	HTTP     HTTPConfig
	Google   GoogleAuthSetting
	Facebook FacebookAuthSetting
	Identity IdentityConfig
	Seed     SeedConfig
	Log      LogConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env  string // development, production
	Name string
}

// IsDevelopment informa si la aplicación corre en modo desarrollo.
func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Env, EnvDevelopment)
}

// DBConfig configuración de PostgreSQL.
// Si DefaultConnection no está vacío, se usa como connection string completo.
type DBConfig struct {
	DefaultConnection string // ConnectionStrings:DefaultConnection
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	AutoMigrate       bool
	MaxConns          int
	ForceIPv4         bool
	ApplicationName   string
}

// ConnectionString devuelve el DSN a usar: DefaultConnection si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DefaultConnection != "" {
		return c.DefaultConnection
	}
	if c.Host == "" {
		return ""
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig configuración del token de sesión (cookie y Bearer).
type JWTConfig struct {
	Secret     string
	Expiration int // minutos
	Issuer     string
	// Generated indica que Secret se generó al arrancar (solo development):
	// las sesiones no sobreviven a un reinicio del proceso.
	Generated bool
}

// HTTPConfig configuración del servidor HTTP.
type HTTPConfig struct {
	Host        string
	Port        int
	HTTPSPort   int    // 0 = sin redirección HTTPS
	WebRoot     string // archivos estáticos
	PublicURL   string // base para las URLs de callback OAuth
	HSTSMaxAge  int    // días
	SwaggerFile string
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GoogleAuthSetting credenciales OAuth de Google (sección GoogleAuthSetting).
type GoogleAuthSetting struct {
	ClientID     string
	ClientSecret string
	CallbackPath string
}

// FacebookAuthSetting credenciales OAuth de Facebook (sección FacebookAuthSetting).
type FacebookAuthSetting struct {
	AppID        string
	AppSecret    string
	CallbackPath string
}

// IdentityConfig opciones de cuentas locales.
type IdentityConfig struct {
	RequireConfirmedAccount bool
	PasswordRequiredLength  int
}

// SeedConfig datos base que se crean al arrancar.
type SeedConfig struct {
	Roles         []string
	AdminEmail    string
	AdminPassword string // sin valor por defecto: debe venir de un secreto externo
	Strict        bool   // si es true un fallo del seed detiene el arranque
}

// LogConfig nivel de log.
type LogConfig struct {
	Level string
}

// Load lee la configuración desde el directorio actual y ./config.
func Load() (*Config, error) {
	return LoadFrom(".", "./config")
}

// LoadFrom lee la configuración desde los directorios indicados.
// Precedencia (de menor a mayor): valores por defecto, appsettings.json,
// appsettings.{APP_ENV}.json, archivo .env y variables de entorno.
// Las secciones se expresan con "." en Viper y con "__" en variables de entorno
// (GoogleAuthSetting:ClientId -> GOOGLEAUTHSETTING__CLIENTID).
func LoadFrom(dirs ...string) (*Config, error) {
	// .env es opcional; godotenv nunca pisa variables ya definidas.
	for _, dir := range dirs {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))

	v.SetConfigName("appsettings")
	v.SetConfigType("json")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("leer appsettings.json: %w", err)
		}
	}

	env := strings.ToLower(getString(v, "APP_ENV", EnvDevelopment))
	v.SetConfigName("appsettings." + env)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("leer appsettings.%s.json: %w", env, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Env:  env,
			Name: getString(v, "APP_NAME", "portal-identidad"),
		},
		DB: DBConfig{
			DefaultConnection: getString(v, "ConnectionStrings.DefaultConnection", ""),
			Host:              getString(v, "DB_HOST", ""),
			Port:              getInt(v, "DB_PORT", 5432),
			User:              getString(v, "DB_USER", "postgres"),
			Password:          getString(v, "DB_PASSWORD", ""),
			DBName:            getString(v, "DB_NAME", "portal_identidad"),
			SSLMode:           getString(v, "DB_SSLMODE", "disable"),
			AutoMigrate:       getBool(v, "Database.AutoMigrate", false),
			MaxConns:          getInt(v, "DB_MAX_CONNS", 25),
			ForceIPv4:         getBool(v, "DB_FORCE_IPV4", false),
			ApplicationName:   getString(v, "APP_NAME", "portal-identidad"),
		},
		JWT: JWTConfig{
			Secret:     getString(v, "JWT_SECRET", ""),
			Expiration: getInt(v, "JWT_EXPIRATION_MINUTES", 60),
			Issuer:     getString(v, "JWT_ISSUER", "portal-identidad"),
		},
		HTTP: HTTPConfig{
			Host:        getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:        getInt(v, "HTTP_PORT", 8080),
			HTTPSPort:   getInt(v, "HTTPS_PORT", 0),
			WebRoot:     getString(v, "HTTP_WEBROOT", "./wwwroot"),
			PublicURL:   strings.TrimRight(getString(v, "HTTP_PUBLIC_URL", "http://localhost:8080"), "/"),
			HSTSMaxAge:  getInt(v, "HSTS_MAX_AGE_DAYS", 30),
			SwaggerFile: getString(v, "SWAGGER_FILE", "./docs/swagger.json"),
		},
		Google: GoogleAuthSetting{
			ClientID:     getString(v, "GoogleAuthSetting.ClientId", ""),
			ClientSecret: getString(v, "GoogleAuthSetting.ClientSecret", ""),
			CallbackPath: getString(v, "GoogleAuthSetting.CallbackPath", "/signin-google"),
		},
		Facebook: FacebookAuthSetting{
			AppID:        getString(v, "FacebookAuthSetting.AppId", ""),
			AppSecret:    getString(v, "FacebookAuthSetting.AppSecret", ""),
			CallbackPath: getString(v, "FacebookAuthSetting.CallbackPath", "/signin-facebook"),
		},
		Identity: IdentityConfig{
			RequireConfirmedAccount: getBool(v, "Identity.RequireConfirmedAccount", false),
			PasswordRequiredLength:  getInt(v, "Identity.Password.RequiredLength", 6),
		},
		Seed: SeedConfig{
			Roles:         getStringSlice(v, "Seed.Roles", []string{"Admin", "Manager", "User"}),
			AdminEmail:    getString(v, "Seed.AdminEmail", "admin@admin.com"),
			AdminPassword: getString(v, "Seed.AdminPassword", ""),
			Strict:        getBool(v, "Seed.Strict", false),
		},
		Log: LogConfig{
			Level: getString(v, "LOG_LEVEL", "info"),
		},
	}

	if cfg.JWT.Secret == "" && cfg.App.IsDevelopment() {
		cfg.JWT.Secret = rand.Text()
		cfg.JWT.Generated = true
	}

	return cfg, nil
}

// Validate rechaza configuraciones con las que no se puede arrancar en producción.
func (c *Config) Validate() error {
	if c.App.IsDevelopment() {
		return nil
	}
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET es obligatorio fuera de development"))
	}
	if c.DB.ConnectionString() == "" {
		errs = append(errs, errors.New("ConnectionStrings:DefaultConnection es obligatorio fuera de development"))
	}
	return errors.Join(errs...)
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if v.IsSet(key) {
		return v.GetBool(key)
	}
	return def
}

// getStringSlice acepta una lista JSON o un string separado por comas (variables de entorno).
func getStringSlice(v *viper.Viper, key string, def []string) []string {
	if !v.IsSet(key) {
		return def
	}
	var raw []string
	switch val := v.Get(key).(type) {
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = v.GetStringSlice(key)
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
