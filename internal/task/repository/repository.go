package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories repository set of the task domain
type Repositories struct {
	User              *UserRepository
	Department        *DepartmentRepository
	Role              *RoleRepository
	Customer          *CustomerRepository
	Template          *TemplateRepository
	ConditionalAction *ConditionalActionRepository
	Instance          *InstanceRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:              NewUserRepository(db),
		Department:        NewDepartmentRepository(db),
		Role:              NewRoleRepository(db),
		Customer:          NewCustomerRepository(db),
		Template:          NewTemplateRepository(db),
		ConditionalAction: NewConditionalActionRepository(db),
		Instance:          NewInstanceRepository(db),
	}
}

// translate maps gorm sentinel errors onto repository errors. Requires
// gorm.Config.TranslateError for duplicate keys.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func paginate(page, pageSize int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return (page - 1) * pageSize, pageSize
}
