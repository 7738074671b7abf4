package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InstanceRepository task, function, field and input instances
type InstanceRepository struct {
	db *gorm.DB
}

func NewInstanceRepository(db *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

func (r *InstanceRepository) WithTx(tx *gorm.DB) *InstanceRepository {
	return &InstanceRepository{db: tx}
}

// DB underlying handle, for callers that run their own transaction
func (r *InstanceRepository) DB() *gorm.DB {
	return r.db
}

// NextCode next task code of the year, T-<year>-<seq3>. Callers retry on
// ErrDuplicate when two writers race for the same sequence.
func (r *InstanceRepository) NextCode(ctx context.Context, now time.Time) (string, error) {
	prefix := fmt.Sprintf("T-%d-", now.Year())
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TaskInstance{}).
		Where("code LIKE ?", prefix+"%").
		Count(&count).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}

func (r *InstanceRepository) CreateTask(ctx context.Context, t *entity.TaskInstance) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(t).Error)
}

func (r *InstanceRepository) CreateFn(ctx context.Context, f *entity.FnInstance) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(f).Error)
}

func (r *InstanceRepository) CreateField(ctx context.Context, f *entity.FieldInstance) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(f).Error)
}

func (r *InstanceRepository) CreateInput(ctx context.Context, in *entity.InputInstance) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(in).Error)
}

// LinkDropdowns inserts dropdown join rows, ignoring rows that already exist.
// links is a slice of one of the *InstanceDropdownTemplate types.
func (r *InstanceRepository) LinkDropdowns(ctx context.Context, links interface{}) error {
	if links == nil {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(links).Error
}

// LinkMetadata inserts metadata instances, skipping templates the task already has
func (r *InstanceRepository) LinkMetadata(ctx context.Context, rows []entity.MetadataInstance) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// LinkedDropdowns dropdown templates linked to an instance through joinTable
func (r *InstanceRepository) LinkedDropdowns(ctx context.Context, joinTable, ownerColumn, ownerID string) ([]entity.DropdownTemplate, error) {
	var items []entity.DropdownTemplate
	err := r.db.WithContext(ctx).
		Preload("DropdownItem").
		Joins(fmt.Sprintf("JOIN %s ON %s.dropdown_template_id = dropdown_templates.id", joinTable, joinTable)).
		Where(fmt.Sprintf("%s.%s = ?", joinTable, ownerColumn), ownerID).
		Order("dropdown_templates.created_at ASC").
		Find(&items).Error
	return items, err
}

// ---- task instances ----

func (r *InstanceRepository) FindTask(ctx context.Context, id string) (*entity.TaskInstance, error) {
	var t entity.TaskInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// FindTaskTree loads the task with every function, field and input beneath it
func (r *InstanceRepository) FindTaskTree(ctx context.Context, id string) (*entity.TaskInstance, error) {
	var t entity.TaskInstance
	err := r.db.WithContext(ctx).
		Preload("TaskTemplate").
		Preload("Customer").
		Preload("FnInstances", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("FnInstances.FnTemplate").
		Preload("FnInstances.FieldInstances", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("FnInstances.FieldInstances.FieldTemplate").
		Preload("FnInstances.FieldInstances.InputInstances", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Preload("FnInstances.FieldInstances.InputInstances.InputTemplate").
		Preload("MetadataInstances", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

// ListTasks paginated task instances, newest first
func (r *InstanceRepository) ListTasks(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.TaskInstance, int64, error) {
	var items []entity.TaskInstance
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.TaskInstance{})

	for _, col := range []string{"customer_id", "assignee_id", "task_template_id", "created_by_id", "priority"} {
		if v, ok := filters[col].(string); ok && v != "" {
			query = query.Where(col+" = ?", v)
		}
	}
	if status, ok := filters["status"].(string); ok {
		switch status {
		case "open":
			query = query.Where("closed_at IS NULL")
		case "closed":
			query = query.Where("closed_at IS NOT NULL")
		}
	}
	if archived, ok := filters["archived"].(bool); ok {
		query = query.Where("is_archived = ?", archived)
	}
	if keyword, ok := filters["keyword"].(string); ok && keyword != "" {
		query = query.Where("code LIKE ? OR remarks LIKE ?", "%"+keyword+"%", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := paginate(page, pageSize)
	err := query.
		Preload("TaskTemplate").
		Preload("Customer").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error

	return items, total, err
}

// UpdateTask updates the given columns
func (r *InstanceRepository) UpdateTask(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.TaskInstance{}).Where("id = ?", id).Updates(updates).Error
}

// CloseTask sets closed_at once. Reports false when it was already closed.
func (r *InstanceRepository) CloseTask(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	return r.closeOnce(ctx, &entity.TaskInstance{}, id, userID, at)
}

func (r *InstanceRepository) CountTasksCreated(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TaskInstance{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error
	return count, err
}

func (r *InstanceRepository) CountTasksClosed(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.TaskInstance{}).
		Where("closed_at >= ? AND closed_at < ?", from, to).
		Count(&count).Error
	return count, err
}

// ---- function instances ----

func (r *InstanceRepository) FindFn(ctx context.Context, id string) (*entity.FnInstance, error) {
	var f entity.FnInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// FindFnByTemplate first function instance of the template inside a task
func (r *InstanceRepository) FindFnByTemplate(ctx context.Context, taskInstanceID, fnTemplateID string) (*entity.FnInstance, error) {
	var f entity.FnInstance
	err := r.db.WithContext(ctx).
		Where("task_instance_id = ? AND fn_template_id = ?", taskInstanceID, fnTemplateID).
		Order("created_at ASC, id ASC").
		First(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// HasFollowUp reports whether a follow-up function already hangs off predecessorID
func (r *InstanceRepository) HasFollowUp(ctx context.Context, predecessorID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.FnInstance{}).
		Where("predecessor_fn_instance_id = ?", predecessorID).
		Count(&count).Error
	return count > 0, err
}

func (r *InstanceRepository) CountFnByTemplate(ctx context.Context, taskInstanceID, fnTemplateID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.FnInstance{}).
		Where("task_instance_id = ? AND fn_template_id = ?", taskInstanceID, fnTemplateID).
		Count(&count).Error
	return count, err
}

func (r *InstanceRepository) MaxFnSortOrder(ctx context.Context, taskInstanceID string) (int, error) {
	return r.maxSortOrder(ctx, &entity.FnInstance{}, "task_instance_id", taskInstanceID)
}

func (r *InstanceRepository) UpdateFn(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.FnInstance{}).Where("id = ?", id).Updates(updates).Error
}

func (r *InstanceRepository) CloseFn(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	return r.closeOnce(ctx, &entity.FnInstance{}, id, userID, at)
}

// ---- field instances ----

func (r *InstanceRepository) FindField(ctx context.Context, id string) (*entity.FieldInstance, error) {
	var f entity.FieldInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// FindFieldByTemplate field instance of the template inside a task,
// preferring the one under preferFnInstanceID
func (r *InstanceRepository) FindFieldByTemplate(ctx context.Context, taskInstanceID, fieldTemplateID, preferFnInstanceID string) (*entity.FieldInstance, error) {
	var f entity.FieldInstance
	err := r.db.WithContext(ctx).
		Where("task_instance_id = ? AND field_template_id = ?", taskInstanceID, fieldTemplateID).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN fn_instance_id = ? THEN 0 ELSE 1 END, created_at ASC, id ASC",
			Vars:               []interface{}{preferFnInstanceID},
			WithoutParentheses: true,
		}}).
		First(&f).Error
	if err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

func (r *InstanceRepository) CloseField(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	return r.closeOnce(ctx, &entity.FieldInstance{}, id, userID, at)
}

// ---- input instances ----

func (r *InstanceRepository) FindInput(ctx context.Context, id string) (*entity.InputInstance, error) {
	var in entity.InputInstance
	err := r.db.WithContext(ctx).
		Preload("InputTemplate").
		Where("id = ?", id).
		First(&in).Error
	if err != nil {
		return nil, translate(err)
	}
	return &in, nil
}

// FindDynamicInput input created under a field by a given conditional action
func (r *InstanceRepository) FindDynamicInput(ctx context.Context, fieldInstanceID, actionID string) (*entity.InputInstance, error) {
	var in entity.InputInstance
	err := r.db.WithContext(ctx).
		Where("field_instance_id = ? AND triggering_conditional_action_id = ?", fieldInstanceID, actionID).
		First(&in).Error
	if err != nil {
		return nil, translate(err)
	}
	return &in, nil
}

func (r *InstanceRepository) ListInputsOfField(ctx context.Context, fieldInstanceID string) ([]entity.InputInstance, error) {
	var items []entity.InputInstance
	err := r.db.WithContext(ctx).
		Where("field_instance_id = ?", fieldInstanceID).
		Order("sort_order ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *InstanceRepository) MaxInputSortOrder(ctx context.Context, fieldInstanceID string) (int, error) {
	return r.maxSortOrder(ctx, &entity.InputInstance{}, "field_instance_id", fieldInstanceID)
}

// UpdateInputValue writes value, file paths and audit columns
func (r *InstanceRepository) UpdateInputValue(ctx context.Context, in *entity.InputInstance) error {
	return r.db.WithContext(ctx).Model(&entity.InputInstance{}).
		Where("id = ?", in.ID).
		Select("value", "file_paths", "updated_by_id", "remarks", "updated_at").
		Updates(in).Error
}

// ---- helpers ----

func (r *InstanceRepository) closeOnce(ctx context.Context, model interface{}, id, userID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND closed_at IS NULL", id).
		Updates(map[string]interface{}{
			"closed_at":    at,
			"closed_by_id": userID,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *InstanceRepository) maxSortOrder(ctx context.Context, model interface{}, column, parentID string) (int, error) {
	var max sql.NullInt64
	err := r.db.WithContext(ctx).Model(model).
		Where(column+" = ?", parentID).
		Select("MAX(sort_order)").
		Row().Scan(&max)
	if err != nil || !max.Valid {
		return -1, err
	}
	return int(max.Int64), nil
}
