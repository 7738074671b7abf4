package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/google/uuid"
)

// DirectoryService departments and roles
type DirectoryService struct {
	departments *repository.DepartmentRepository
	roles       *repository.RoleRepository
}

func NewDirectoryService(departments *repository.DepartmentRepository, roles *repository.RoleRepository) *DirectoryService {
	return &DirectoryService{departments: departments, roles: roles}
}

type CreateDepartmentRequest struct {
	Type        entity.DepartmentType `json:"type" binding:"required"`
	Description string                `json:"description"`
}

type CreateRoleRequest struct {
	DepartmentID string                  `json:"department_id" binding:"required"`
	Type         entity.RoleType         `json:"type" binding:"required"`
	Permissions  []entity.PermissionType `json:"permissions"`
}

func (s *DirectoryService) ListDepartments(ctx context.Context) ([]entity.Department, error) {
	return s.departments.List(ctx)
}

func (s *DirectoryService) CreateDepartment(ctx context.Context, req *CreateDepartmentRequest) (*entity.Department, error) {
	if !req.Type.Valid() {
		return nil, invalid("type", "unknown department %q", req.Type)
	}
	d := &entity.Department{
		ID:          uuid.New().String(),
		Type:        req.Type,
		Description: req.Description,
	}
	if err := s.departments.Create(ctx, d); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("department %s already exists", req.Type)
		}
		return nil, fmt.Errorf("create department: %w", err)
	}
	return d, nil
}

func (s *DirectoryService) ListRoles(ctx context.Context, departmentID string) ([]entity.Role, error) {
	return s.roles.List(ctx, departmentID)
}

// CreateRole creates a role with its permissions in one insert
func (s *DirectoryService) CreateRole(ctx context.Context, req *CreateRoleRequest) (*entity.Role, error) {
	if !req.Type.Valid() {
		return nil, invalid("type", "unknown role %q", req.Type)
	}
	if _, err := s.departments.FindByID(ctx, req.DepartmentID); err != nil {
		return nil, lookup(err, "department", req.DepartmentID)
	}

	role := &entity.Role{
		ID:           uuid.New().String(),
		DepartmentID: req.DepartmentID,
		Type:         req.Type,
	}
	seen := map[entity.PermissionType]bool{}
	for _, p := range req.Permissions {
		if !p.Valid() {
			return nil, invalid("permissions", "unknown permission %q", p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		role.Permissions = append(role.Permissions, entity.Permission{
			ID:     uuid.New().String(),
			RoleID: role.ID,
			Type:   p,
		})
	}

	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("role %s already exists in the department", req.Type)
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	return role, nil
}
