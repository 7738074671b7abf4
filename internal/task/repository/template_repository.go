package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"gorm.io/gorm"
)

// MissingNodeError a join row points at a template that does not exist
type MissingNodeError struct {
	Kind       string
	ID         string
	ParentKind string
	ParentID   string
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("%s template %s referenced by %s template %s does not exist", e.Kind, e.ID, e.ParentKind, e.ParentID)
}

func (e *MissingNodeError) Unwrap() error { return ErrNotFound }

// TemplateRepository template graph storage
type TemplateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) WithTx(tx *gorm.DB) *TemplateRepository {
	return &TemplateRepository{db: tx}
}

func first[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	var v T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

func listByName[T any](ctx context.Context, db *gorm.DB, keyword string) ([]T, error) {
	var items []T
	query := db.WithContext(ctx)
	if keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}
	err := query.Order("name ASC").Find(&items).Error
	return items, err
}

// ---- task templates ----

func (r *TemplateRepository) FindTaskTemplate(ctx context.Context, id string) (*entity.TaskTemplate, error) {
	return first[entity.TaskTemplate](ctx, r.db, id)
}

func (r *TemplateRepository) ListTaskTemplates(ctx context.Context, keyword string) ([]entity.TaskTemplate, error) {
	return listByName[entity.TaskTemplate](ctx, r.db, keyword)
}

func (r *TemplateRepository) CreateTaskTemplate(ctx context.Context, t *entity.TaskTemplate) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *TemplateRepository) UpdateTaskTemplate(ctx context.Context, t *entity.TaskTemplate) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

// DeleteTaskTemplate removes the template with its fn links and dropdowns
func (r *TemplateRepository) DeleteTaskTemplate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_template_id = ?", id).Delete(&entity.TaskTemplateFnTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_template_id = ?", id).Delete(&entity.DropdownTemplate{}).Error; err != nil {
			return err
		}
		if err := deleteMetadataOf(tx, "task_template_id", id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.TaskTemplate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ---- fn templates ----

func (r *TemplateRepository) FindFnTemplate(ctx context.Context, id string) (*entity.FnTemplate, error) {
	return first[entity.FnTemplate](ctx, r.db, id)
}

func (r *TemplateRepository) ListFnTemplates(ctx context.Context, keyword string) ([]entity.FnTemplate, error) {
	return listByName[entity.FnTemplate](ctx, r.db, keyword)
}

func (r *TemplateRepository) CreateFnTemplate(ctx context.Context, t *entity.FnTemplate) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *TemplateRepository) UpdateFnTemplate(ctx context.Context, t *entity.FnTemplate) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

// DeleteFnTemplate removes the template, its links, and follow-up pointers to it
func (r *TemplateRepository) DeleteFnTemplate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("fn_template_id = ?", id).Delete(&entity.TaskTemplateFnTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("fn_template_id = ?", id).Delete(&entity.FnTemplateFieldTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("fn_template_id = ?", id).Delete(&entity.DropdownTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&entity.FnTemplate{}).
			Where("next_follow_up_fn_template_id = ?", id).
			Update("next_follow_up_fn_template_id", nil).Error; err != nil {
			return err
		}
		if err := deleteMetadataOf(tx, "fn_template_id", id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.FnTemplate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ---- field templates ----

func (r *TemplateRepository) FindFieldTemplate(ctx context.Context, id string) (*entity.FieldTemplate, error) {
	return first[entity.FieldTemplate](ctx, r.db, id)
}

func (r *TemplateRepository) ListFieldTemplates(ctx context.Context, keyword string) ([]entity.FieldTemplate, error) {
	return listByName[entity.FieldTemplate](ctx, r.db, keyword)
}

func (r *TemplateRepository) CreateFieldTemplate(ctx context.Context, t *entity.FieldTemplate) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *TemplateRepository) UpdateFieldTemplate(ctx context.Context, t *entity.FieldTemplate) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

func (r *TemplateRepository) DeleteFieldTemplate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("field_template_id = ?", id).Delete(&entity.FnTemplateFieldTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("field_template_id = ?", id).Delete(&entity.FieldTemplateInputTemplate{}).Error; err != nil {
			return err
		}
		if err := deleteMetadataOf(tx, "field_template_id", id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.FieldTemplate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ---- input templates ----

func (r *TemplateRepository) FindInputTemplate(ctx context.Context, id string) (*entity.InputTemplate, error) {
	return first[entity.InputTemplate](ctx, r.db, id)
}

func (r *TemplateRepository) ListInputTemplates(ctx context.Context, keyword string) ([]entity.InputTemplate, error) {
	return listByName[entity.InputTemplate](ctx, r.db, keyword)
}

func (r *TemplateRepository) CreateInputTemplate(ctx context.Context, t *entity.InputTemplate) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r *TemplateRepository) UpdateInputTemplate(ctx context.Context, t *entity.InputTemplate) error {
	return translate(r.db.WithContext(ctx).Save(t).Error)
}

// DeleteInputTemplate removes the template, its links, dropdowns and the
// conditional actions sourced from it
func (r *TemplateRepository) DeleteInputTemplate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("input_template_id = ?", id).Delete(&entity.FieldTemplateInputTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Where("input_template_id = ?", id).Delete(&entity.DropdownTemplate{}).Error; err != nil {
			return err
		}
		actionIDs := tx.Model(&entity.ConditionalAction{}).Select("id").Where("input_template_id = ?", id)
		if err := tx.Where("action_id IN (?)", actionIDs).Delete(&entity.ConditionalActionUser{}).Error; err != nil {
			return err
		}
		if err := tx.Where("input_template_id = ?", id).Delete(&entity.ConditionalAction{}).Error; err != nil {
			return err
		}
		if err := deleteMetadataOf(tx, "input_template_id", id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.InputTemplate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ---- joins ----

// Attach creates a join row; attaching twice returns ErrDuplicate
func (r *TemplateRepository) Attach(ctx context.Context, link interface{}) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

// Detach deletes a join row matching the non-zero keys of link
func (r *TemplateRepository) Detach(ctx context.Context, link interface{}) error {
	res := r.db.WithContext(ctx).Where(link).Delete(link)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// NextSortOrder next free sort order under a parent
func (r *TemplateRepository) NextSortOrder(ctx context.Context, model interface{}, parentColumn, parentID string) (int, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).Model(model).
		Where(parentColumn+" = ?", parentID).
		Select("MAX(sort_order)").
		Row().Scan(&max)
	if err != nil || !max.Valid {
		return 0, err
	}
	return int(max.Int64) + 1, nil
}

// ---- dropdowns ----

func (r *TemplateRepository) ListDropdownItems(ctx context.Context, keyword string) ([]entity.DropdownItem, error) {
	return listByName[entity.DropdownItem](ctx, r.db, keyword)
}

func (r *TemplateRepository) FindDropdownItem(ctx context.Context, id string) (*entity.DropdownItem, error) {
	return first[entity.DropdownItem](ctx, r.db, id)
}

func (r *TemplateRepository) CreateDropdownItem(ctx context.Context, item *entity.DropdownItem) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *TemplateRepository) UpdateDropdownItem(ctx context.Context, item *entity.DropdownItem) error {
	return translate(r.db.WithContext(ctx).Save(item).Error)
}

// DeleteDropdownItem removes the item and every dropdown template using it
func (r *TemplateRepository) DeleteDropdownItem(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dropdown_item_id = ?", id).Delete(&entity.DropdownTemplate{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.DropdownItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *TemplateRepository) CreateDropdownTemplate(ctx context.Context, d *entity.DropdownTemplate) error {
	return translate(r.db.WithContext(ctx).Omit("DropdownItem").Create(d).Error)
}

func (r *TemplateRepository) DeleteDropdownTemplate(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.DropdownTemplate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDropdownTemplates filters by owner column (task_template_id, fn_template_id, input_template_id)
func (r *TemplateRepository) ListDropdownTemplates(ctx context.Context, column, ownerID string) ([]entity.DropdownTemplate, error) {
	var items []entity.DropdownTemplate
	query := r.db.WithContext(ctx).Preload("DropdownItem")
	if column != "" {
		query = query.Where(column+" = ?", ownerID)
	}
	err := query.Order("created_at ASC").Find(&items).Error
	return items, err
}

// ---- metadata ----

func (r *TemplateRepository) FindMetadataTemplate(ctx context.Context, id string) (*entity.MetadataTemplate, error) {
	return first[entity.MetadataTemplate](ctx, r.db, id)
}

func (r *TemplateRepository) CreateMetadataTemplate(ctx context.Context, m *entity.MetadataTemplate) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

// ListMetadataTemplates filters by owner column when column is set
func (r *TemplateRepository) ListMetadataTemplates(ctx context.Context, column, ownerID string) ([]entity.MetadataTemplate, error) {
	var items []entity.MetadataTemplate
	query := r.db.WithContext(ctx)
	if column != "" {
		query = query.Where(column+" = ?", ownerID)
	}
	err := query.Order("created_at ASC").Find(&items).Error
	return items, err
}

// DeleteMetadataTemplate removes the template and its instances
func (r *TemplateRepository) DeleteMetadataTemplate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("metadata_template_id = ?", id).Delete(&entity.MetadataInstance{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.MetadataTemplate{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// MetadataTemplatesFor metadata owned by the task template or by any of the
// given fn, field and input templates
func (r *TemplateRepository) MetadataTemplatesFor(ctx context.Context, taskTemplateID string, fnIDs, fieldIDs, inputIDs []string) ([]entity.MetadataTemplate, error) {
	query := r.db.WithContext(ctx).Where("task_template_id = ?", taskTemplateID)
	if len(fnIDs) > 0 {
		query = query.Or("fn_template_id IN ?", fnIDs)
	}
	if len(fieldIDs) > 0 {
		query = query.Or("field_template_id IN ?", fieldIDs)
	}
	if len(inputIDs) > 0 {
		query = query.Or("input_template_id IN ?", inputIDs)
	}
	var items []entity.MetadataTemplate
	err := query.Order("created_at ASC, id ASC").Find(&items).Error
	return items, err
}

func deleteMetadataOf(tx *gorm.DB, column, ownerID string) error {
	ids := tx.Model(&entity.MetadataTemplate{}).Select("id").Where(column+" = ?", ownerID)
	if err := tx.Where("metadata_template_id IN (?)", ids).Delete(&entity.MetadataInstance{}).Error; err != nil {
		return err
	}
	return tx.Where(column+" = ?", ownerID).Delete(&entity.MetadataTemplate{}).Error
}

// ---- graph ----

// LoadGraph resolves a task template down to its inputs. Any join row
// pointing at a missing template yields a *MissingNodeError.
func (r *TemplateRepository) LoadGraph(ctx context.Context, taskTemplateID string) (*entity.TemplateGraph, error) {
	task, err := r.FindTaskTemplate(ctx, taskTemplateID)
	if err != nil {
		return nil, err
	}

	var links []entity.TaskTemplateFnTemplate
	err = r.db.WithContext(ctx).
		Where("task_template_id = ?", taskTemplateID).
		Order("sort_order ASC, fn_template_id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	graph := &entity.TemplateGraph{Task: *task}
	for _, link := range links {
		node, err := r.LoadFnNode(ctx, link.FnTemplateID)
		if err != nil {
			var missing *MissingNodeError
			if errors.Is(err, ErrNotFound) && !errors.As(err, &missing) {
				return nil, &MissingNodeError{Kind: "fn", ID: link.FnTemplateID, ParentKind: "task", ParentID: taskTemplateID}
			}
			return nil, err
		}
		node.SortOrder = link.SortOrder
		graph.Fns = append(graph.Fns, *node)
	}

	graph.Dropdowns, err = r.ListDropdownTemplates(ctx, "task_template_id", taskTemplateID)
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// LoadFnNode resolves one function template with fields and inputs.
// A missing fn template itself returns ErrNotFound.
func (r *TemplateRepository) LoadFnNode(ctx context.Context, fnTemplateID string) (*entity.FnNode, error) {
	fn, err := r.FindFnTemplate(ctx, fnTemplateID)
	if err != nil {
		return nil, err
	}
	node := &entity.FnNode{Template: *fn}

	var fieldLinks []entity.FnTemplateFieldTemplate
	err = r.db.WithContext(ctx).
		Where("fn_template_id = ?", fnTemplateID).
		Order("sort_order ASC, field_template_id ASC").
		Find(&fieldLinks).Error
	if err != nil {
		return nil, err
	}

	for _, fl := range fieldLinks {
		field, err := r.FindFieldTemplate(ctx, fl.FieldTemplateID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, &MissingNodeError{Kind: "field", ID: fl.FieldTemplateID, ParentKind: "fn", ParentID: fnTemplateID}
			}
			return nil, err
		}
		fieldNode := entity.FieldNode{Template: *field, SortOrder: fl.SortOrder}

		var inputLinks []entity.FieldTemplateInputTemplate
		err = r.db.WithContext(ctx).
			Where("field_template_id = ?", field.ID).
			Order("sort_order ASC, input_template_id ASC").
			Find(&inputLinks).Error
		if err != nil {
			return nil, err
		}
		for _, il := range inputLinks {
			input, err := r.FindInputTemplate(ctx, il.InputTemplateID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return nil, &MissingNodeError{Kind: "input", ID: il.InputTemplateID, ParentKind: "field", ParentID: field.ID}
				}
				return nil, err
			}
			dropdowns, err := r.ListDropdownTemplates(ctx, "input_template_id", input.ID)
			if err != nil {
				return nil, err
			}
			fieldNode.Inputs = append(fieldNode.Inputs, entity.InputNode{
				Template:  *input,
				SortOrder: il.SortOrder,
				Dropdowns: dropdowns,
			})
		}
		node.Fields = append(node.Fields, fieldNode)
	}

	node.Dropdowns, err = r.ListDropdownTemplates(ctx, "fn_template_id", fnTemplateID)
	if err != nil {
		return nil, err
	}
	return node, nil
}

// AttachedFnTemplates function templates linked to a task template, in sort order
func (r *TemplateRepository) AttachedFnTemplates(ctx context.Context, taskTemplateID string) ([]entity.FnTemplate, error) {
	var items []entity.FnTemplate
	err := r.db.WithContext(ctx).
		Joins("JOIN task_templates_fn_templates tf ON tf.fn_template_id = fn_templates.id").
		Where("tf.task_template_id = ?", taskTemplateID).
		Order("tf.sort_order ASC, fn_templates.id ASC").
		Find(&items).Error
	return items, err
}
