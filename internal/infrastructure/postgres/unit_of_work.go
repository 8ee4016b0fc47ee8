package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

var _ repository.UnitOfWork = (*UnitOfWork)(nil)

// UnitOfWork abre ámbitos sobre conexiones del pool y los libera al terminar.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork construye la unidad de trabajo con el pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Scope adquiere una conexión, ejecuta fn con repos atados a ella y la devuelve al pool.
func (u *UnitOfWork) Scope(ctx context.Context, fn func(s repository.Stores) error) error {
	conn, err := u.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return fn(storesFor(conn))
}

// Tx inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (u *UnitOfWork) Tx(ctx context.Context, fn func(s repository.Stores) error) error {
	conn, err := u.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(storesFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func storesFor(q Querier) repository.Stores {
	return repository.Stores{
		Roles:  NewRoleRepository(q),
		Users:  NewUserRepository(q),
		Logins: NewUserLoginRepository(q),
	}
}
