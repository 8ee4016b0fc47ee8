package repository

import (
	"context"

	"github.com/jhoicas/portal-identidad/internal/domain/entity"
)

// UserRepository define el puerto de persistencia para User (DIP).
// Las búsquedas devuelven (nil, nil) cuando no hay coincidencia.
type UserRepository interface {
	// Create devuelve domain.ErrEmailAlreadyExists si el email o el user name ya existen.
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUserName(ctx context.Context, userName string) (*entity.User, error)
	List(ctx context.Context, limit, offset int) ([]*entity.User, error)
	Count(ctx context.Context) (int, error)
	// AddToRole es idempotente; devuelve domain.ErrRoleNotFound si el rol no existe.
	AddToRole(ctx context.Context, userID, roleName string) error
	GetRoles(ctx context.Context, userID string) ([]string, error)
}
