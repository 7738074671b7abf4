package repository

import (
	"context"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"gorm.io/gorm"
)

// UserRepository users and their department/role links
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID loads a user with departments
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).
		Preload("Departments").
		Where("id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByIDs returns the users that exist; missing ids are silently absent.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]entity.User, error) {
	var users []entity.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// Exists reports whether an enabled user has the id
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ? AND disabled = ?", id, false).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

// Update saves scalar columns only, associations are managed separately
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	return translate(r.db.WithContext(ctx).Omit("Departments", "Roles").Save(user).Error)
}

// List paginated users, newest first
func (r *UserRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.User, int64, error) {
	var users []entity.User
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.User{})

	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		query = query.Where("name LIKE ? OR email LIKE ? OR phone LIKE ?",
			"%"+keyword+"%", "%"+keyword+"%", "%"+keyword+"%")
	}
	if disabled, ok := filters["disabled"].(bool); ok {
		query = query.Where("disabled = ?", disabled)
	}
	if departmentID, ok := filters["department_id"].(string); ok && departmentID != "" {
		query = query.Where("id IN (?)",
			r.db.Model(&entity.UserDepartment{}).Select("user_id").Where("department_id = ?", departmentID))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(page, pageSize)
	err := query.
		Preload("Departments").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error

	return users, total, err
}

// SetDepartments replaces the user's departments
func (r *UserRepository) SetDepartments(ctx context.Context, userID string, departmentIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entity.UserDepartment{}).Error; err != nil {
			return err
		}
		for _, id := range departmentIDs {
			if err := tx.Create(&entity.UserDepartment{UserID: userID, DepartmentID: id}).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

// SetRoles replaces the user's roles
func (r *UserRepository) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&entity.UserRole{}).Error; err != nil {
			return err
		}
		for _, id := range roleIDs {
			if err := tx.Create(&entity.UserRole{UserID: userID, RoleID: id}).Error; err != nil {
				return translate(err)
			}
		}
		return nil
	})
}

// LoadRolesAndPermissions fills Roles, RoleCodes and PermissionCodes
func (r *UserRepository) LoadRolesAndPermissions(ctx context.Context, user *entity.User) error {
	var roles []entity.Role
	err := r.db.WithContext(ctx).
		Table("roles").
		Joins("JOIN user_roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", user.ID).
		Find(&roles).Error
	if err != nil {
		return err
	}
	user.Roles = roles

	seen := map[string]bool{}
	roleCodes := make([]string, 0, len(roles)+1)
	roleIDs := make([]string, len(roles))
	for i, role := range roles {
		if !seen[string(role.Type)] {
			seen[string(role.Type)] = true
			roleCodes = append(roleCodes, string(role.Type))
		}
		roleIDs[i] = role.ID
	}
	if user.IsAdmin && !seen[string(entity.RoleAdmin)] {
		roleCodes = append(roleCodes, string(entity.RoleAdmin))
	}
	user.RoleCodes = roleCodes

	user.PermissionCodes = []string{}
	if len(roleIDs) > 0 {
		var permissions []entity.Permission
		err = r.db.WithContext(ctx).
			Where("role_id IN ?", roleIDs).
			Find(&permissions).Error
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		for _, perm := range permissions {
			if !seen[string(perm.Type)] {
				seen[string(perm.Type)] = true
				user.PermissionCodes = append(user.PermissionCodes, string(perm.Type))
			}
		}
	}

	return nil
}
