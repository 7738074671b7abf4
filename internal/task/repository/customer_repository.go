package repository

import (
	"context"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"gorm.io/gorm"
)

// CustomerRepository customers and parent companies
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) WithTx(tx *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: tx}
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*entity.Customer, error) {
	var c entity.Customer
	err := r.db.WithContext(ctx).
		Preload("ParentCompany").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c *entity.Customer) error {
	return translate(r.db.WithContext(ctx).Omit("ParentCompany").Create(c).Error)
}

// CreateBatch inserts customers in chunks
func (r *CustomerRepository) CreateBatch(ctx context.Context, customers []entity.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).Omit("ParentCompany").CreateInBatches(customers, 100).Error)
}

func (r *CustomerRepository) Update(ctx context.Context, c *entity.Customer) error {
	return translate(r.db.WithContext(ctx).Omit("ParentCompany").Save(c).Error)
}

// List customers filtered by keyword, parent company and disabled flag
func (r *CustomerRepository) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.Customer, int64, error) {
	var items []entity.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Customer{})

	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR phone LIKE ? OR gst LIKE ?", like, like, like, like)
	}
	if parentID, ok := filters["parent_company_id"].(string); ok && parentID != "" {
		query = query.Where("parent_company_id = ?", parentID)
	}
	if disabled, ok := filters["disabled"].(bool); ok {
		query = query.Where("disabled = ?", disabled)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(page, pageSize)
	err := query.
		Preload("ParentCompany").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error

	return items, total, err
}

func (r *CustomerRepository) ListParentCompanies(ctx context.Context) ([]entity.ParentCompany, error) {
	var items []entity.ParentCompany
	err := r.db.WithContext(ctx).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *CustomerRepository) FindParentCompany(ctx context.Context, id string) (*entity.ParentCompany, error) {
	var p entity.ParentCompany
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *CustomerRepository) CreateParentCompany(ctx context.Context, p *entity.ParentCompany) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *CustomerRepository) FindParentCompanyByName(ctx context.Context, name string) (*entity.ParentCompany, error) {
	var p entity.ParentCompany
	if err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}
