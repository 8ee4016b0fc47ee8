package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

const userColumns = `id, user_name, normalized_user_name, email, normalized_email, email_confirmed,
		password_hash, security_stamp, concurrency_stamp, created_at, updated_at`

// UserRepo implementación del puerto UserRepository sobre PostgreSQL (usable con pool, conn o tx).
type UserRepo struct {
	q Querier
}

// NewUserRepository construye el adaptador de persistencia para usuarios. Pasar pool, conn o tx (Querier).
func NewUserRepository(q Querier) *UserRepo {
	return &UserRepo{q: q}
}

// Create persiste un nuevo usuario.
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		user.ID, user.UserName, user.NormalizedUserName, user.Email, user.NormalizedEmail, user.EmailConfirmed,
		user.PasswordHash, user.SecurityStamp, user.ConcurrencyStamp, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID obtiene un usuario por ID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// FindByEmail obtiene un usuario por email (comparación normalizada).
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	normalized := identity.Normalize(email)
	if normalized == "" {
		return nil, nil
	}
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE normalized_email = $1 LIMIT 1`, normalized)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// FindByUserName obtiene un usuario por nombre de usuario (comparación normalizada).
func (r *UserRepo) FindByUserName(ctx context.Context, userName string) (*entity.User, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE normalized_user_name = $1`, identity.Normalize(userName))
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by user name: %w", err)
	}
	return u, nil
}

// List lista usuarios con paginación, los más antiguos primero.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, user_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var list []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

// Count devuelve el total de usuarios.
func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// AddToRole agrega la membresía si no existe todavía.
func (r *UserRepo) AddToRole(ctx context.Context, userID, roleName string) error {
	var roleID string
	err := r.q.QueryRow(ctx, `SELECT id FROM roles WHERE normalized_name = $1`, identity.Normalize(roleName)).Scan(&roleID)
	if err != nil {
		if isNoRows(err) {
			return domain.ErrRoleNotFound
		}
		return fmt.Errorf("get role id: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`, userID, roleID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("insert user role: %w", err)
	}
	return nil
}

// GetRoles devuelve los nombres de los roles del usuario ordenados alfabéticamente.
func (r *UserRepo) GetRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan user roles: %w", err)
	}
	return roles, nil
}

// scanUser devuelve (nil, nil) si no hay fila.
func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(
		&u.ID, &u.UserName, &u.NormalizedUserName, &u.Email, &u.NormalizedEmail, &u.EmailConfirmed,
		&u.PasswordHash, &u.SecurityStamp, &u.ConcurrencyStamp, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
