package entity

import "time"

// User cuenta del sistema. PasswordHash queda vacío en cuentas solo externas.
type User struct {
	ID                 string
	UserName           string
	NormalizedUserName string
	Email              string
	NormalizedEmail    string
	EmailConfirmed     bool
	PasswordHash       string // bcrypt, nunca plano en dominio después de persistir
	SecurityStamp      string
	ConcurrencyStamp   string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasPassword informa si la cuenta admite login local.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
