package entity

import (
	"time"
)

// User account
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	Email        string    `json:"email" gorm:"size:255;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	Phone        string    `json:"phone" gorm:"size:20"`
	ProfileImage string    `json:"profile_image" gorm:"size:512"`
	IsAdmin      bool      `json:"is_admin" gorm:"not null;default:false"`
	Disabled     bool      `json:"disabled" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Departments []Department `json:"departments,omitempty" gorm:"many2many:user_departments;"`
	Roles       []Role       `json:"roles,omitempty" gorm:"many2many:user_roles;"`

	// not persisted
	RoleCodes       []string `json:"role_codes,omitempty" gorm:"-"`
	PermissionCodes []string `json:"permission_codes,omitempty" gorm:"-"`
}

func (User) TableName() string {
	return "users"
}

// Department one of the fixed business departments
type Department struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Type        DepartmentType `json:"type" gorm:"size:32;not null;uniqueIndex"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Roles []Role `json:"roles,omitempty" gorm:"foreignKey:DepartmentID"`
}

func (Department) TableName() string {
	return "departments"
}

// UserDepartment join
type UserDepartment struct {
	UserID       string `gorm:"primaryKey;size:36"`
	DepartmentID string `gorm:"primaryKey;size:36"`
}

func (UserDepartment) TableName() string {
	return "user_departments"
}

// Role typed role scoped to a department
type Role struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	DepartmentID string    `json:"department_id" gorm:"size:36;not null;uniqueIndex:idx_role_department_type"`
	Type         RoleType  `json:"type" gorm:"size:32;not null;uniqueIndex:idx_role_department_type"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Permissions []Permission `json:"permissions,omitempty" gorm:"foreignKey:RoleID"`
}

func (Role) TableName() string {
	return "roles"
}

// Permission granted by a role
type Permission struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	RoleID    string         `json:"role_id" gorm:"size:36;not null;uniqueIndex:idx_permission_role_type"`
	Type      PermissionType `json:"type" gorm:"size:16;not null;uniqueIndex:idx_permission_role_type"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

// UserRole join
type UserRole struct {
	UserID string `gorm:"primaryKey;size:36"`
	RoleID string `gorm:"primaryKey;size:36"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
