package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

var _ repository.RoleRepository = (*RoleRepo)(nil)

// RoleRepo implementación de RoleRepository sobre PostgreSQL.
type RoleRepo struct {
	q Querier
}

// NewRoleRepository construye el adaptador de roles. Pasar pool, conn o tx (Querier).
func NewRoleRepository(q Querier) *RoleRepo {
	return &RoleRepo{q: q}
}

// Exists informa si hay un rol con ese nombre.
func (r *RoleRepo) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE normalized_name = $1)`, identity.Normalize(name)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("role exists: %w", err)
	}
	return exists, nil
}

// Create inserta el rol. ON CONFLICT evita abortar la transacción si otro proceso lo creó antes.
func (r *RoleRepo) Create(ctx context.Context, role *entity.Role) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO roles (id, name, normalized_name, concurrency_stamp, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (normalized_name) DO NOTHING`,
		role.ID, role.Name, role.NormalizedName, role.ConcurrencyStamp, role.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// GetByName obtiene un rol por nombre.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	var role entity.Role
	err := r.q.QueryRow(ctx, `
		SELECT id, name, normalized_name, concurrency_stamp, created_at
		FROM roles WHERE normalized_name = $1`, identity.Normalize(name)).Scan(
		&role.ID, &role.Name, &role.NormalizedName, &role.ConcurrencyStamp, &role.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

// List devuelve todos los roles por nombre.
func (r *RoleRepo) List(ctx context.Context) ([]*entity.Role, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, name, normalized_name, concurrency_stamp, created_at
		FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	var list []*entity.Role
	for rows.Next() {
		var role entity.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.NormalizedName, &role.ConcurrencyStamp, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		list = append(list, &role)
	}
	return list, rows.Err()
}
