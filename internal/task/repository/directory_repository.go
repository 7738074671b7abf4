package repository

import (
	"context"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"gorm.io/gorm"
)

// DepartmentRepository departments
type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) List(ctx context.Context) ([]entity.Department, error) {
	var departments []entity.Department
	err := r.db.WithContext(ctx).
		Preload("Roles.Permissions").
		Order("type ASC").
		Find(&departments).Error
	return departments, err
}

func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*entity.Department, error) {
	var d entity.Department
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r *DepartmentRepository) Create(ctx context.Context, d *entity.Department) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

// RoleRepository roles and their permissions
type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) List(ctx context.Context, departmentID string) ([]entity.Role, error) {
	var roles []entity.Role
	query := r.db.WithContext(ctx).Preload("Permissions")
	if departmentID != "" {
		query = query.Where("department_id = ?", departmentID)
	}
	err := query.Order("type ASC").Find(&roles).Error
	return roles, err
}

// Create inserts the role together with its permissions
func (r *RoleRepository) Create(ctx context.Context, role *entity.Role) error {
	return translate(r.db.WithContext(ctx).Create(role).Error)
}

// CountExisting number of ids that exist
func (r *RoleRepository) CountExisting(ctx context.Context, ids []string) (int64, error) {
	var count int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Model(&entity.Role{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}
