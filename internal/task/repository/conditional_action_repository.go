package repository

import (
	"context"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"gorm.io/gorm"
)

// ConditionalActionRepository rules attached to input templates
type ConditionalActionRepository struct {
	db *gorm.DB
}

func NewConditionalActionRepository(db *gorm.DB) *ConditionalActionRepository {
	return &ConditionalActionRepository{db: db}
}

func (r *ConditionalActionRepository) WithTx(tx *gorm.DB) *ConditionalActionRepository {
	return &ConditionalActionRepository{db: tx}
}

// Create inserts the action and its notify users
func (r *ConditionalActionRepository) Create(ctx context.Context, a *entity.ConditionalAction) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r *ConditionalActionRepository) FindByID(ctx context.Context, id string) (*entity.ConditionalAction, error) {
	var a entity.ConditionalAction
	err := r.db.WithContext(ctx).
		Preload("Users").
		Where("id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// ListByInputTemplate rules sourced from an input template, oldest first
func (r *ConditionalActionRepository) ListByInputTemplate(ctx context.Context, inputTemplateID string) ([]entity.ConditionalAction, error) {
	var items []entity.ConditionalAction
	query := r.db.WithContext(ctx).Preload("Users")
	if inputTemplateID != "" {
		query = query.Where("input_template_id = ?", inputTemplateID)
	}
	err := query.Order("created_at ASC, id ASC").Find(&items).Error
	return items, err
}

func (r *ConditionalActionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("action_id = ?", id).Delete(&entity.ConditionalActionUser{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.ConditionalAction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
