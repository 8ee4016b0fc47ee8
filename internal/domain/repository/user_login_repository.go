package repository

import (
	"context"

	"github.com/jhoicas/portal-identidad/internal/domain/entity"
)

// UserLoginRepository persiste los vínculos con proveedores externos.
type UserLoginRepository interface {
	Find(ctx context.Context, provider, providerKey string) (*entity.UserLogin, error)
	// Add devuelve domain.ErrDuplicate si el vínculo ya existe.
	Add(ctx context.Context, login *entity.UserLogin) error
	ListByUser(ctx context.Context, userID string) ([]*entity.UserLogin, error)
}
