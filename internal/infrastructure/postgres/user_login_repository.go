package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

var _ repository.UserLoginRepository = (*UserLoginRepo)(nil)

// UserLoginRepo vínculos usuario ↔ proveedor externo sobre PostgreSQL.
type UserLoginRepo struct {
	q Querier
}

// NewUserLoginRepository construye el adaptador. Pasar pool, conn o tx (Querier).
func NewUserLoginRepository(q Querier) *UserLoginRepo {
	return &UserLoginRepo{q: q}
}

// Find busca el vínculo por proveedor y clave del proveedor.
func (r *UserLoginRepo) Find(ctx context.Context, provider, providerKey string) (*entity.UserLogin, error) {
	var l entity.UserLogin
	err := r.q.QueryRow(ctx, `
		SELECT login_provider, provider_key, provider_display_name, user_id, created_at
		FROM user_logins WHERE login_provider = $1 AND provider_key = $2`, provider, providerKey).Scan(
		&l.LoginProvider, &l.ProviderKey, &l.ProviderDisplayName, &l.UserID, &l.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user login: %w", err)
	}
	return &l, nil
}

// Add persiste el vínculo.
func (r *UserLoginRepo) Add(ctx context.Context, login *entity.UserLogin) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO user_logins (login_provider, provider_key, provider_display_name, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		login.LoginProvider, login.ProviderKey, login.ProviderDisplayName, login.UserID, login.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert user login: %w", err)
	}
	return nil
}

// ListByUser lista los proveedores vinculados a un usuario.
func (r *UserLoginRepo) ListByUser(ctx context.Context, userID string) ([]*entity.UserLogin, error) {
	rows, err := r.q.Query(ctx, `
		SELECT login_provider, provider_key, provider_display_name, user_id, created_at
		FROM user_logins WHERE user_id = $1 ORDER BY login_provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user logins: %w", err)
	}
	defer rows.Close()
	var list []*entity.UserLogin
	for rows.Next() {
		var l entity.UserLogin
		if err := rows.Scan(&l.LoginProvider, &l.ProviderKey, &l.ProviderDisplayName, &l.UserID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user login: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
