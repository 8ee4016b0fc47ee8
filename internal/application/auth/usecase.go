package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"

	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/internal/domain"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
	"github.com/jhoicas/portal-identidad/pkg/jwt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// Options reglas de cuentas locales.
type Options struct {
	RequireConfirmedAccount bool
	Policy                  identity.PasswordPolicy
	// DefaultRole se asigna a las cuentas nuevas si el rol existe.
	DefaultRole string
}

// AuthUseCase casos de uso de autenticación: registro, login local, login externo y perfil.
type AuthUseCase struct {
	uow      repository.UnitOfWork
	jwtCfg   JWTConfig
	opts     Options
	validate *validator.Validate
	now      func() time.Time
}

// NewAuthUseCase construye el caso de uso de auth.
func NewAuthUseCase(uow repository.UnitOfWork, jwtCfg JWTConfig, opts Options) *AuthUseCase {
	if opts.DefaultRole == "" {
		opts.DefaultRole = entity.RoleUser
	}
	return &AuthUseCase{
		uow:      uow,
		jwtCfg:   jwtCfg,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// RegisterUser crea una cuenta local: valida email y política, hashea con bcrypt y persiste.
// Devuelve ErrEmailAlreadyExists si el email ya está registrado.
func (uc *AuthUseCase) RegisterUser(ctx context.Context, in dto.RegisterRequest) (*dto.UserResponse, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := uc.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}
	if in.ConfirmPassword != "" && in.ConfirmPassword != in.Password {
		return nil, fmt.Errorf("%w: la contraseña y su confirmación no coinciden", domain.ErrInvalidInput)
	}
	if err := uc.opts.Policy.Validate(in.Password); err != nil {
		return nil, err
	}
	hash, err := identity.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	var out *dto.UserResponse
	err = uc.uow.Tx(ctx, func(s repository.Stores) error {
		existing, err := s.Users.FindByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrEmailAlreadyExists
		}
		user := uc.newUser(in.Email, in.Email, false)
		user.PasswordHash = hash
		if err := s.Users.Create(ctx, user); err != nil {
			return err
		}
		roles, err := uc.assignDefaultRole(ctx, s, user.ID)
		if err != nil {
			return err
		}
		out = toUserResponse(user, roles, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Login verifica email (o nombre de usuario) y password, genera el token con los roles.
func (uc *AuthUseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := uc.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}

	var (
		user  *entity.User
		roles []string
	)
	err := uc.uow.Scope(ctx, func(s repository.Stores) error {
		var err error
		user, err = s.Users.FindByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if user == nil {
			if user, err = s.Users.FindByUserName(ctx, in.Email); err != nil {
				return err
			}
		}
		if user == nil || !identity.VerifyPassword(user.PasswordHash, in.Password) {
			return domain.ErrUnauthorized
		}
		roles, err = s.Users.GetRoles(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if uc.opts.RequireConfirmedAccount && !user.EmailConfirmed {
		return nil, domain.ErrEmailNotConfirmed
	}
	return uc.issue(user, roles)
}

// ExternalSignIn inicia sesión con una identidad externa. Busca primero el vínculo del proveedor;
// si no existe, vincula la cuenta con el mismo email verificado o crea una nueva.
// Todo ocurre en una transacción.
func (uc *AuthUseCase) ExternalSignIn(ctx context.Context, profile dto.ExternalProfile) (*dto.LoginResponse, error) {
	if profile.Provider == "" || profile.ProviderKey == "" {
		return nil, fmt.Errorf("%w: perfil externo sin identificador", domain.ErrExternalLoginFailed)
	}
	profile.Email = strings.TrimSpace(profile.Email)

	var (
		user  *entity.User
		roles []string
	)
	err := uc.uow.Tx(ctx, func(s repository.Stores) error {
		login, err := s.Logins.Find(ctx, profile.Provider, profile.ProviderKey)
		if err != nil {
			return err
		}
		if login != nil {
			if user, err = s.Users.GetByID(ctx, login.UserID); err != nil {
				return err
			}
			if user == nil {
				return domain.ErrUserNotFound
			}
			roles, err = s.Users.GetRoles(ctx, user.ID)
			return err
		}

		if profile.Email != "" {
			if user, err = s.Users.FindByEmail(ctx, profile.Email); err != nil {
				return err
			}
			if user != nil && !profile.EmailVerified {
				return fmt.Errorf("%w: el proveedor no verificó el email", domain.ErrEmailAlreadyExists)
			}
		}
		if user == nil {
			userName := profile.Email
			if userName == "" {
				userName = strings.ToLower(profile.Provider) + "-" + profile.ProviderKey
			}
			user = uc.newUser(userName, profile.Email, profile.EmailVerified)
			if err := s.Users.Create(ctx, user); err != nil {
				return err
			}
			if roles, err = uc.assignDefaultRole(ctx, s, user.ID); err != nil {
				return err
			}
		} else if roles, err = s.Users.GetRoles(ctx, user.ID); err != nil {
			return err
		}

		return s.Logins.Add(ctx, &entity.UserLogin{
			LoginProvider:       profile.Provider,
			ProviderKey:         profile.ProviderKey,
			ProviderDisplayName: profile.Provider,
			UserID:              user.ID,
			CreatedAt:           uc.now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	if uc.opts.RequireConfirmedAccount && !user.EmailConfirmed {
		return nil, domain.ErrEmailNotConfirmed
	}
	return uc.issue(user, roles)
}

// Me devuelve el perfil con roles y proveedores vinculados.
func (uc *AuthUseCase) Me(ctx context.Context, userID string) (*dto.UserResponse, error) {
	var out *dto.UserResponse
	err := uc.uow.Scope(ctx, func(s repository.Stores) error {
		user, err := s.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return domain.ErrUserNotFound
		}
		roles, err := s.Users.GetRoles(ctx, user.ID)
		if err != nil {
			return err
		}
		logins, err := s.Logins.ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		out = toUserResponse(user, roles, logins)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *AuthUseCase) issue(user *entity.User, roles []string) (*dto.LoginResponse, error) {
	token, err := jwt.Generate(uc.jwtCfg.Secret, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes, jwt.Subject{
		UserID:   user.ID,
		UserName: user.UserName,
		Email:    user.Email,
		Roles:    roles,
	})
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token:     token,
		ExpiresAt: uc.now().Add(time.Duration(uc.jwtCfg.ExpMinutes) * time.Minute).UTC(),
		User:      *toUserResponse(user, roles, nil),
	}, nil
}

func (uc *AuthUseCase) newUser(userName, email string, confirmed bool) *entity.User {
	now := uc.now().UTC()
	return &entity.User{
		ID:                 uuid.New().String(),
		UserName:           userName,
		NormalizedUserName: identity.Normalize(userName),
		Email:              email,
		NormalizedEmail:    identity.Normalize(email),
		EmailConfirmed:     confirmed,
		SecurityStamp:      ksuid.New().String(),
		ConcurrencyStamp:   uuid.New().String(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// assignDefaultRole agrega el rol por defecto si ya fue sembrado.
func (uc *AuthUseCase) assignDefaultRole(ctx context.Context, s repository.Stores, userID string) ([]string, error) {
	exists, err := s.Roles.Exists(ctx, uc.opts.DefaultRole)
	if err != nil || !exists {
		return []string{}, err
	}
	if err := s.Users.AddToRole(ctx, userID, uc.opts.DefaultRole); err != nil {
		return nil, err
	}
	return s.Users.GetRoles(ctx, userID)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, strings.ToLower(fe.Field())+" es obligatorio")
		case "email":
			msgs = append(msgs, strings.ToLower(fe.Field())+" no es un email válido")
		default:
			msgs = append(msgs, strings.ToLower(fe.Field())+" no es válido")
		}
	}
	return strings.Join(msgs, "; ")
}

func toUserResponse(u *entity.User, roles []string, logins []*entity.UserLogin) *dto.UserResponse {
	if u == nil {
		return nil
	}
	if roles == nil {
		roles = []string{}
	}
	resp := &dto.UserResponse{
		ID:             u.ID,
		UserName:       u.UserName,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmed,
		HasPassword:    u.HasPassword(),
		Roles:          roles,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	for _, l := range logins {
		resp.Logins = append(resp.Logins, l.LoginProvider)
	}
	return resp
}
