package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/datachef-lab/taskify-backend/internal/shared/notify"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserService user directory
type UserService struct {
	repo     *repository.UserRepository
	roleRepo *repository.RoleRepository
}

func NewUserService(repo *repository.UserRepository, roleRepo *repository.RoleRepository) *UserService {
	return &UserService{repo: repo, roleRepo: roleRepo}
}

// CreateUserRequest new account
type CreateUserRequest struct {
	Name          string   `json:"name" binding:"required"`
	Email         string   `json:"email" binding:"required,email"`
	Password      string   `json:"password" binding:"required,min=8"`
	Phone         string   `json:"phone"`
	ProfileImage  string   `json:"profile_image"`
	IsAdmin       bool     `json:"is_admin"`
	DepartmentIDs []string `json:"department_ids"`
}

// UpdateUserRequest partial update, nil fields are left alone
type UpdateUserRequest struct {
	Name         *string `json:"name"`
	Phone        *string `json:"phone"`
	ProfileImage *string `json:"profile_image"`
	Password     *string `json:"password" binding:"omitempty,min=8"`
	IsAdmin      *bool   `json:"is_admin"`
}

func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || strings.TrimSpace(req.Name) == "" {
		return nil, invalid("", "name and email are required")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Phone:        req.Phone,
		ProfileImage: req.ProfileImage,
		IsAdmin:      req.IsAdmin,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("email %s is already registered", email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if len(req.DepartmentIDs) > 0 {
		if err := s.repo.SetDepartments(ctx, user.ID, req.DepartmentIDs); err != nil {
			return nil, fmt.Errorf("assign departments: %w", err)
		}
	}
	return s.Get(ctx, user.ID)
}

// Get loads a user with departments, roles and permissions
func (s *UserService) Get(ctx context.Context, id string) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "user", id)
	}
	if err := s.repo.LoadRolesAndPermissions(ctx, user); err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.User, int64, error) {
	return s.repo.List(ctx, page, pageSize, filters)
}

func (s *UserService) Update(ctx context.Context, id string, req *UpdateUserRequest) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "user", id)
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, invalid("name", "must not be empty")
		}
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.ProfileImage != nil {
		user.ProfileImage = *req.ProfileImage
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.Password != nil {
		hash, err := HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *UserService) SetDisabled(ctx context.Context, id string, disabled bool) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookup(err, "user", id)
	}
	user.Disabled = disabled
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *UserService) AssignDepartments(ctx context.Context, id string, departmentIDs []string) (*entity.User, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, lookup(err, "user", id)
	}
	if err := s.repo.SetDepartments(ctx, id, departmentIDs); err != nil {
		return nil, fmt.Errorf("assign departments: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *UserService) AssignRoles(ctx context.Context, id string, roleIDs []string) (*entity.User, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, lookup(err, "user", id)
	}
	n, err := s.roleRepo.CountExisting(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	if int(n) != len(uniqueStrings(roleIDs)) {
		return nil, invalid("role_ids", "unknown role id")
	}
	if err := s.repo.SetRoles(ctx, id, uniqueStrings(roleIDs)); err != nil {
		return nil, fmt.Errorf("assign roles: %w", err)
	}
	return s.Get(ctx, id)
}

// Exists reports whether an enabled user has the id
func (s *UserService) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

func (s *UserService) FindByIDs(ctx context.Context, ids []string) ([]entity.User, error) {
	return s.repo.FindByIDs(ctx, ids)
}

// Recipients resolves notification targets, skipping disabled users
func (s *UserService) Recipients(ctx context.Context, ids []string) ([]notify.Recipient, error) {
	users, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]notify.Recipient, 0, len(users))
	for _, u := range users {
		if u.Disabled {
			continue
		}
		out = append(out, notify.Recipient{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	return out, nil
}

// HashPassword bcrypt hash at the default cost
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", invalid("password", "must be at least 8 characters")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
