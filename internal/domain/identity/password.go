package identity

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/portal-identidad/internal/domain"
)

// MaxPasswordBytes límite de bcrypt: contraseñas más largas no se pueden hashear.
const MaxPasswordBytes = 72

// PasswordPolicy reglas mínimas para contraseñas locales.
type PasswordPolicy struct {
	RequiredLength         int
	RequiredUniqueChars    int
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
	RequireNonAlphanumeric bool
}

// DefaultPasswordPolicy política por defecto: 6 caracteres con dígito, minúscula, mayúscula y símbolo.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		RequiredLength:         6,
		RequiredUniqueChars:    1,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}
}

// Validate devuelve nil o un error que envuelve domain.ErrWeakPassword con todas las reglas incumplidas.
func (p PasswordPolicy) Validate(password string) error {
	var (
		problems                             []error
		hasDigit, hasLower, hasUpper, hasSym bool
		unique                               = make(map[rune]struct{})
		length                               int
	)
	for _, r := range password {
		length++
		unique[r] = struct{}{}
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasSym = true
		}
	}
	if length < p.RequiredLength {
		problems = append(problems, fmt.Errorf("debe tener al menos %d caracteres", p.RequiredLength))
	}
	if len(password) > MaxPasswordBytes {
		problems = append(problems, fmt.Errorf("no puede superar %d bytes", MaxPasswordBytes))
	}
	if p.RequireDigit && !hasDigit {
		problems = append(problems, errors.New("debe incluir un dígito"))
	}
	if p.RequireLowercase && !hasLower {
		problems = append(problems, errors.New("debe incluir una minúscula"))
	}
	if p.RequireUppercase && !hasUpper {
		problems = append(problems, errors.New("debe incluir una mayúscula"))
	}
	if p.RequireNonAlphanumeric && !hasSym {
		problems = append(problems, errors.New("debe incluir un carácter no alfanumérico"))
	}
	if len(unique) < p.RequiredUniqueChars {
		problems = append(problems, fmt.Errorf("debe usar al menos %d caracteres distintos", p.RequiredUniqueChars))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrWeakPassword, errors.Join(problems...))
}

// HashPassword genera el hash bcrypt de la contraseña.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: no puede superar %d bytes", domain.ErrWeakPassword, MaxPasswordBytes)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compara la contraseña con su hash; false si no coincide o no hay hash.
func VerifyPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
