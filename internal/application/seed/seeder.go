// Package seed crea los datos base del sistema: roles por defecto y la cuenta administradora.
// Puede ejecutarse en cada arranque; nunca duplica ni modifica lo que ya existe.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

// Resultado del paso del administrador.
const (
	AdminCreated = "created"
	AdminExisted = "existed"
	AdminSkipped = "skipped"
	AdminFailed  = "failed"
)

// Options datos a sembrar.
type Options struct {
	Roles         []string
	AdminEmail    string
	AdminPassword string
	AdminRole     string
}

// DefaultOptions roles Admin, Manager y User; administrador admin@admin.com sin contraseña.
func DefaultOptions() Options {
	return Options{
		Roles:      []string{entity.RoleAdmin, entity.RoleManager, entity.RoleUser},
		AdminEmail: "admin@admin.com",
		AdminRole:  entity.RoleAdmin,
	}
}

// Report lo que hizo una ejecución del seed.
type Report struct {
	RolesCreated  []string
	RolesExisting []string
	RolesFailed   []string
	Admin         string
	AdminUserID   string
}

// MarshalZerologObject permite loguear el reporte como objeto.
func (r *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Strs("roles_created", r.RolesCreated).
		Strs("roles_existing", r.RolesExisting).
		Strs("roles_failed", r.RolesFailed).
		Str("admin", r.Admin)
}

// Seeder siembra roles y administrador sobre una unidad de trabajo.
type Seeder struct {
	uow    repository.UnitOfWork
	opts   Options
	policy identity.PasswordPolicy
	log    zerolog.Logger
	now    func() time.Time
}

// NewSeeder construye el seeder. Valores vacíos de opts toman los de DefaultOptions.
func NewSeeder(uow repository.UnitOfWork, opts Options, policy identity.PasswordPolicy, log zerolog.Logger) *Seeder {
	def := DefaultOptions()
	if len(opts.Roles) == 0 {
		opts.Roles = def.Roles
	}
	if strings.TrimSpace(opts.AdminEmail) == "" {
		opts.AdminEmail = def.AdminEmail
	}
	if strings.TrimSpace(opts.AdminRole) == "" {
		opts.AdminRole = def.AdminRole
	}
	return &Seeder{uow: uow, opts: opts, policy: policy, log: log, now: time.Now}
}

// Run ejecuta los dos pasos: roles y administrador. No aborta ante fallos parciales:
// devuelve el reporte completo y un error que une todos los fallos.
func (s *Seeder) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	rolesErr := s.seedRoles(ctx, report)
	adminErr := s.seedAdmin(ctx, report)
	return report, errors.Join(rolesErr, adminErr)
}

func (s *Seeder) seedRoles(ctx context.Context, report *Report) error {
	var errs []error
	scopeErr := s.uow.Scope(ctx, func(st repository.Stores) error {
		for _, name := range s.opts.Roles {
			created, err := s.ensureRole(ctx, st.Roles, name)
			switch {
			case err != nil:
				report.RolesFailed = append(report.RolesFailed, name)
				errs = append(errs, fmt.Errorf("rol %q: %w", name, err))
			case created:
				report.RolesCreated = append(report.RolesCreated, name)
			default:
				report.RolesExisting = append(report.RolesExisting, name)
			}
		}
		return nil
	})
	if scopeErr != nil {
		errs = append(errs, fmt.Errorf("seed roles: %w", scopeErr))
	}
	return errors.Join(errs...)
}

// ensureRole crea el rol si no existe. Un duplicado creado por otro proceso cuenta como existente.
func (s *Seeder) ensureRole(ctx context.Context, roles repository.RoleRepository, name string) (bool, error) {
	exists, err := roles.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	role := &entity.Role{
		ID:               uuid.New().String(),
		Name:             name,
		NormalizedName:   identity.Normalize(name),
		ConcurrencyStamp: uuid.New().String(),
		CreatedAt:        s.now().UTC(),
	}
	if err := roles.Create(ctx, role); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Seeder) seedAdmin(ctx context.Context, report *Report) error {
	if s.opts.AdminPassword == "" {
		report.Admin = AdminSkipped
		s.log.Warn().Str("email", s.opts.AdminEmail).
			Msg("Seed:AdminPassword no configurado; se omite la cuenta administradora")
		return nil
	}

	err := s.uow.Tx(ctx, func(st repository.Stores) error {
		existing, err := st.Users.FindByEmail(ctx, s.opts.AdminEmail)
		if err != nil {
			return err
		}
		if existing != nil {
			report.Admin = AdminExisted
			report.AdminUserID = existing.ID
			return nil
		}

		if err := s.policy.Validate(s.opts.AdminPassword); err != nil {
			return err
		}
		hash, err := identity.HashPassword(s.opts.AdminPassword)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		user := &entity.User{
			ID:                 uuid.New().String(),
			UserName:           s.opts.AdminEmail,
			NormalizedUserName: identity.Normalize(s.opts.AdminEmail),
			Email:              s.opts.AdminEmail,
			NormalizedEmail:    identity.Normalize(s.opts.AdminEmail),
			EmailConfirmed:     true,
			PasswordHash:       hash,
			SecurityStamp:      ksuid.New().String(),
			ConcurrencyStamp:   uuid.New().String(),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := st.Users.Create(ctx, user); err != nil {
			return err
		}
		if err := st.Users.AddToRole(ctx, user.ID, s.opts.AdminRole); err != nil {
			return err
		}
		report.Admin = AdminCreated
		report.AdminUserID = user.ID
		return nil
	})
	if err != nil {
		// Otro proceso creó la cuenta entre la búsqueda y el insert.
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			report.Admin = AdminExisted
			report.AdminUserID = ""
			return nil
		}
		report.Admin = AdminFailed
		report.AdminUserID = ""
		return fmt.Errorf("seed admin %q: %w", s.opts.AdminEmail, err)
	}
	return nil
}
