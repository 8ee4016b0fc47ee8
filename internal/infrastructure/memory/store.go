// Package memory implementa los repositorios en memoria. Se usa en desarrollo cuando no hay
// cadena de conexión y en los tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

type loginKey struct {
	provider string
	key      string
}

type state struct {
	roles       map[string]*entity.Role    // por NormalizedName
	users       map[string]*entity.User    // por ID
	memberships map[string]map[string]bool // userID -> NormalizedName
	logins      map[loginKey]*entity.UserLogin
}

func newState() *state {
	return &state{
		roles:       make(map[string]*entity.Role),
		users:       make(map[string]*entity.User),
		memberships: make(map[string]map[string]bool),
		logins:      make(map[loginKey]*entity.UserLogin),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.roles {
		r := *v
		c.roles[k] = &r
	}
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range s.memberships {
		m := make(map[string]bool, len(v))
		for r := range v {
			m[r] = true
		}
		c.memberships[k] = m
	}
	for k, v := range s.logins {
		l := *v
		c.logins[k] = &l
	}
	return c
}

// Store guarda roles, usuarios y vínculos externos. Seguro para uso concurrente.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *state
	// Fail, si no es nil, se consulta antes de cada operación; permite simular fallos en tests.
	Fail func(op string) error
}

var _ repository.UnitOfWork = (*Store)(nil)

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{data: newState()}
}

// Stores repositorios que operan directamente sobre el almacén.
func (s *Store) Stores() repository.Stores {
	return s.bind(nil)
}

// Scope ejecuta fn con repositorios sobre el almacén.
func (s *Store) Scope(ctx context.Context, fn func(repository.Stores) error) error {
	return fn(s.Stores())
}

// Tx ejecuta fn sobre una copia; si fn no falla la copia reemplaza al estado actual.
// Las transacciones se serializan entre sí; escrituras fuera de Tx durante una transacción se pierden.
func (s *Store) Tx(ctx context.Context, fn func(repository.Stores) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	tx := &txState{data: snapshot}
	if err := fn(s.bind(tx)); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
	return nil
}

type txState struct {
	mu   sync.Mutex
	data *state
}

// bind devuelve repos sobre el estado compartido (tx nil) o sobre la copia de una transacción.
func (s *Store) bind(tx *txState) repository.Stores {
	v := &view{store: s, tx: tx}
	return repository.Stores{
		Roles:  &RoleRepo{v},
		Users:  &UserRepo{v},
		Logins: &UserLoginRepo{v},
	}
}

type view struct {
	store *Store
	tx    *txState
}

// with ejecuta fn con el estado bloqueado.
func (v *view) with(op string, fn func(st *state) error) error {
	if v.store.Fail != nil {
		if err := v.store.Fail(op); err != nil {
			return err
		}
	}
	if v.tx != nil {
		v.tx.mu.Lock()
		defer v.tx.mu.Unlock()
		return fn(v.tx.data)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

// RoleRepo roles en memoria.
type RoleRepo struct{ v *view }

var _ repository.RoleRepository = (*RoleRepo)(nil)

func (r *RoleRepo) Exists(ctx context.Context, name string) (bool, error) {
	var ok bool
	err := r.v.with("roles.exists", func(st *state) error {
		_, ok = st.roles[identity.Normalize(name)]
		return nil
	})
	return ok, err
}

func (r *RoleRepo) Create(ctx context.Context, role *entity.Role) error {
	return r.v.with("roles.create", func(st *state) error {
		if _, dup := st.roles[role.NormalizedName]; dup {
			return domain.ErrDuplicate
		}
		cp := *role
		st.roles[role.NormalizedName] = &cp
		return nil
	})
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*entity.Role, error) {
	var out *entity.Role
	err := r.v.with("roles.get", func(st *state) error {
		if role, ok := st.roles[identity.Normalize(name)]; ok {
			cp := *role
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *RoleRepo) List(ctx context.Context) ([]*entity.Role, error) {
	var out []*entity.Role
	err := r.v.with("roles.list", func(st *state) error {
		for _, role := range st.roles {
			cp := *role
			out = append(out, &cp)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

// UserRepo usuarios en memoria.
type UserRepo struct{ v *view }

var _ repository.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	return r.v.with("users.create", func(st *state) error {
		if _, dup := st.users[user.ID]; dup {
			return domain.ErrDuplicate
		}
		for _, u := range st.users {
			if u.NormalizedUserName == user.NormalizedUserName ||
				(user.NormalizedEmail != "" && u.NormalizedEmail == user.NormalizedEmail) {
				return domain.ErrEmailAlreadyExists
			}
		}
		cp := *user
		st.users[user.ID] = &cp
		return nil
	})
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var out *entity.User
	err := r.v.with("users.get", func(st *state) error {
		if u, ok := st.users[id]; ok {
			cp := *u
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	normalized := identity.Normalize(email)
	return r.find("users.find_by_email", func(u *entity.User) bool {
		return normalized != "" && u.NormalizedEmail == normalized
	})
}

func (r *UserRepo) FindByUserName(ctx context.Context, userName string) (*entity.User, error) {
	normalized := identity.Normalize(userName)
	return r.find("users.find_by_user_name", func(u *entity.User) bool {
		return u.NormalizedUserName == normalized
	})
}

func (r *UserRepo) find(op string, match func(*entity.User) bool) (*entity.User, error) {
	var out *entity.User
	err := r.v.with(op, func(st *state) error {
		for _, u := range st.users {
			if match(u) {
				cp := *u
				out = &cp
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	var all []*entity.User
	err := r.v.with("users.list", func(st *state) error {
		for _, u := range st.users {
			cp := *u
			all = append(all, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].UserName < all[j].UserName
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.v.with("users.count", func(st *state) error {
		n = len(st.users)
		return nil
	})
	return n, err
}

func (r *UserRepo) AddToRole(ctx context.Context, userID, roleName string) error {
	return r.v.with("users.add_to_role", func(st *state) error {
		normalized := identity.Normalize(roleName)
		if _, ok := st.roles[normalized]; !ok {
			return domain.ErrRoleNotFound
		}
		if _, ok := st.users[userID]; !ok {
			return domain.ErrUserNotFound
		}
		if st.memberships[userID] == nil {
			st.memberships[userID] = make(map[string]bool)
		}
		st.memberships[userID][normalized] = true
		return nil
	})
}

func (r *UserRepo) GetRoles(ctx context.Context, userID string) ([]string, error) {
	var out []string
	err := r.v.with("users.get_roles", func(st *state) error {
		for normalized := range st.memberships[userID] {
			if role, ok := st.roles[normalized]; ok {
				out = append(out, role.Name)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// UserLoginRepo vínculos externos en memoria.
type UserLoginRepo struct{ v *view }

var _ repository.UserLoginRepository = (*UserLoginRepo)(nil)

func (r *UserLoginRepo) Find(ctx context.Context, provider, providerKey string) (*entity.UserLogin, error) {
	var out *entity.UserLogin
	err := r.v.with("logins.find", func(st *state) error {
		if l, ok := st.logins[loginKey{provider, providerKey}]; ok {
			cp := *l
			out = &cp
		}
		return nil
	})
	return out, err
}

func (r *UserLoginRepo) Add(ctx context.Context, login *entity.UserLogin) error {
	return r.v.with("logins.add", func(st *state) error {
		k := loginKey{login.LoginProvider, login.ProviderKey}
		if _, dup := st.logins[k]; dup {
			return domain.ErrDuplicate
		}
		if _, ok := st.users[login.UserID]; !ok {
			return domain.ErrUserNotFound
		}
		cp := *login
		st.logins[k] = &cp
		return nil
	})
}

func (r *UserLoginRepo) ListByUser(ctx context.Context, userID string) ([]*entity.UserLogin, error) {
	var out []*entity.UserLogin
	err := r.v.with("logins.list_by_user", func(st *state) error {
		for _, l := range st.logins {
			if l.UserID == userID {
				cp := *l
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LoginProvider < out[j].LoginProvider })
	return out, err
}
