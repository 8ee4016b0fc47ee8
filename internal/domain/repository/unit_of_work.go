package repository

import "context"

// Stores repositorios atados a un mismo ámbito (conexión o transacción).
type Stores struct {
	Roles  RoleRepository
	Users  UserRepository
	Logins UserLoginRepository
}

// UnitOfWork abre un ámbito, entrega los repositorios y lo libera al terminar, pase lo que pase.
type UnitOfWork interface {
	// Scope usa una conexión dedicada; cada sentencia se confirma por separado.
	Scope(ctx context.Context, fn func(s Stores) error) error
	// Tx ejecuta fn en una transacción: commit si fn no falla, rollback en otro caso.
	Tx(ctx context.Context, fn func(s Stores) error) error
}
