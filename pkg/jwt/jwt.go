package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject identidad que viaja en el token de sesión.
type Subject struct {
	UserID   string
	UserName string
	Email    string
	Roles    []string
}

// Claims incluye los claims estándar JWT más los campos propios de la aplicación.
// Roles viaja en el token para que la autorización no consulte la DB en cada request.
type Claims struct {
	jwt.RegisteredClaims
	UserName string   `json:"user_name"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// StateClaims token de correlación para el flujo OAuth externo.
type StateClaims struct {
	jwt.RegisteredClaims
	Provider  string `json:"provider"`
	ReturnURL string `json:"return_url"`
	Nonce     string `json:"nonce"`
}

var errEmptySecret = errors.New("jwt: secret vacío")

// Generate genera un token firmado (HS256) para el usuario con sus roles.
func Generate(secret, issuer string, expMinutes int, sub Subject) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sub.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserName: sub.UserName,
		Email:    sub.Email,
		Roles:    sub.Roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida el token y devuelve la identidad.
// Retorna error si el token es inválido, expirado o tiene firma incorrecta.
func Parse(secret, tokenString string) (*Subject, error) {
	var claims Claims
	if err := parse(secret, tokenString, &claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("claims inválidos: sin sub")
	}
	return &Subject{
		UserID:   claims.Subject,
		UserName: claims.UserName,
		Email:    claims.Email,
		Roles:    claims.Roles,
	}, nil
}

// GenerateState firma el estado de un login externo (proveedor, URL de retorno y nonce).
func GenerateState(secret, provider, returnURL, nonce string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errEmptySecret
	}
	now := time.Now()
	claims := StateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Provider:  provider,
		ReturnURL: returnURL,
		Nonce:     nonce,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseState valida el estado devuelto por el proveedor.
func ParseState(secret, tokenString string) (*StateClaims, error) {
	var claims StateClaims
	if err := parse(secret, tokenString, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

func parse(secret, tokenString string, claims jwt.Claims) error {
	if secret == "" {
		return errEmptySecret
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de firma inesperado: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("claims inválidos")
	}
	return nil
}
