package usecase

import (
	"context"
	"fmt"

	"github.com/jhoicas/portal-identidad/internal/application/dto"
	"github.com/jhoicas/portal-identidad/internal/domain/entity"
	"github.com/jhoicas/portal-identidad/internal/domain/repository"
)

// exportBatch tamaño de página al recorrer todos los usuarios para el reporte.
const exportBatch = 200

// UserReportGenerator genera el reporte PDF de usuarios.
type UserReportGenerator interface {
	GenerateUserReport(ctx context.Context, users []dto.UserResponse) ([]byte, error)
}

// UserUseCase consultas de administración de usuarios y roles.
type UserUseCase struct {
	uow     repository.UnitOfWork
	reports UserReportGenerator
}

// NewUserUseCase construye el caso de uso con la unidad de trabajo y el generador de reportes.
func NewUserUseCase(uow repository.UnitOfWork, reports UserReportGenerator) *UserUseCase {
	return &UserUseCase{uow: uow, reports: reports}
}

// List devuelve una página de usuarios con sus roles.
func (uc *UserUseCase) List(ctx context.Context, page dto.PageRequest) (*dto.UserListResponse, error) {
	page.DefaultPage()
	out := &dto.UserListResponse{Items: []dto.UserResponse{}}
	err := uc.uow.Scope(ctx, func(s repository.Stores) error {
		total, err := s.Users.Count(ctx)
		if err != nil {
			return err
		}
		users, err := s.Users.List(ctx, page.Limit, page.Offset)
		if err != nil {
			return err
		}
		items, err := withRoles(ctx, s, users)
		if err != nil {
			return err
		}
		out.Items = items
		out.Page = dto.PageResponse{Limit: page.Limit, Offset: page.Offset, Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListRoles devuelve los roles existentes.
func (uc *UserUseCase) ListRoles(ctx context.Context) ([]dto.RoleResponse, error) {
	out := []dto.RoleResponse{}
	err := uc.uow.Scope(ctx, func(s repository.Stores) error {
		roles, err := s.Roles.List(ctx)
		if err != nil {
			return err
		}
		for _, r := range roles {
			out = append(out, dto.RoleResponse{ID: r.ID, Name: r.Name})
		}
		return nil
	})
	return out, err
}

// ExportPDF genera el reporte con todos los usuarios.
func (uc *UserUseCase) ExportPDF(ctx context.Context) ([]byte, error) {
	var all []dto.UserResponse
	err := uc.uow.Scope(ctx, func(s repository.Stores) error {
		for offset := 0; ; offset += exportBatch {
			users, err := s.Users.List(ctx, exportBatch, offset)
			if err != nil {
				return err
			}
			items, err := withRoles(ctx, s, users)
			if err != nil {
				return err
			}
			all = append(all, items...)
			if len(users) < exportBatch {
				return nil
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	return uc.reports.GenerateUserReport(ctx, all)
}

func withRoles(ctx context.Context, s repository.Stores, users []*entity.User) ([]dto.UserResponse, error) {
	items := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		roles, err := s.Users.GetRoles(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		if roles == nil {
			roles = []string{}
		}
		items = append(items, dto.UserResponse{
			ID:             u.ID,
			UserName:       u.UserName,
			Email:          u.Email,
			EmailConfirmed: u.EmailConfirmed,
			HasPassword:    u.HasPassword(),
			Roles:          roles,
			CreatedAt:      u.CreatedAt,
			UpdatedAt:      u.UpdatedAt,
		})
	}
	return items, nil
}
