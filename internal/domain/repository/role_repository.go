package repository

import (
	"context"

	"github.com/jhoicas/portal-identidad/internal/domain/entity"
)

// RoleRepository define el puerto de persistencia para Role.
type RoleRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
	// Create devuelve domain.ErrDuplicate si ya existe un rol con el mismo nombre normalizado.
	Create(ctx context.Context, role *entity.Role) error
	GetByName(ctx context.Context, name string) (*entity.Role, error)
	List(ctx context.Context) ([]*entity.Role, error)
}
