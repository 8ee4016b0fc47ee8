package entity

import "time"

// Roles creados por el seed.
const (
	RoleAdmin   = "Admin"
	RoleManager = "Manager"
	RoleUser    = "User"
)

// Role rol con nombre único (comparado por NormalizedName).
type Role struct {
	ID               string
	Name             string
	NormalizedName   string
	ConcurrencyStamp string
	CreatedAt        time.Time
}
