package service

import (
	"context"
	"fmt"
	"time"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/shared/sse"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskService running task instances
type TaskService struct {
	repos      *repository.Repositories
	engine     *Engine
	evaluator  *Evaluator
	activities ActivityRecorder
	hub        *sse.Hub
	logger     *zap.Logger
	now        func() time.Time
}

func NewTaskService(repos *repository.Repositories, engine *Engine, evaluator *Evaluator, activities ActivityRecorder, hub *sse.Hub, logger *zap.Logger) *TaskService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		repos:      repos,
		engine:     engine,
		evaluator:  evaluator,
		activities: activities,
		hub:        hub,
		logger:     logger,
		now:        time.Now,
	}
}

// UpdateTaskRequest partial update
type UpdateTaskRequest struct {
	Priority   *entity.Priority `json:"priority"`
	AssigneeID *string          `json:"assignee_id"`
	Remarks    *string          `json:"remarks"`
}

type UpdateFnRequest struct {
	AssigneeID *string `json:"assignee_id"`
	Remarks    *string `json:"remarks"`
}

// CloseFnRequest NextFnTemplateID picks the branch of a choice function
type CloseFnRequest struct {
	NextFnTemplateID string `json:"next_fn_template_id"`
}

type CloseFnResult struct {
	Fn       *entity.FnInstance `json:"fn"`
	FollowUp *entity.FnInstance `json:"follow_up,omitempty"`
}

// Create instantiates a task template
func (s *TaskService) Create(ctx context.Context, req *InstantiateRequest) (*entity.TaskInstance, error) {
	task, err := s.engine.Instantiate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.record(task.CreatedByID, aentity.ActivityCreate, aentity.EntityTask, task.ID,
		fmt.Sprintf("created task %s", task.Code), map[string]interface{}{"task_template_id": task.TaskTemplateID, "customer_id": task.CustomerID})
	s.publish(task, task.ID, "created")
	return s.Get(ctx, task.ID)
}

// List filters: customer_id, assignee_id, task_template_id, created_by_id,
// priority, status (open|closed), archived, keyword
func (s *TaskService) List(ctx context.Context, page, pageSize int, filters map[string]interface{}) ([]entity.TaskInstance, int64, error) {
	if status, ok := filters["status"].(string); ok && status != "" && status != "open" && status != "closed" {
		return nil, 0, invalid("status", "must be open or closed")
	}
	if p, ok := filters["priority"].(string); ok && p != "" && !entity.Priority(p).Valid() {
		return nil, 0, invalid("priority", "unknown priority %q", p)
	}
	return s.repos.Instance.ListTasks(ctx, page, pageSize, filters)
}

// Get the task with its full instance tree
func (s *TaskService) Get(ctx context.Context, id string) (*entity.TaskInstance, error) {
	task, err := s.repos.Instance.FindTaskTree(ctx, id)
	if err != nil {
		return nil, lookup(err, "task instance", id)
	}
	return task, nil
}

func (s *TaskService) Update(ctx context.Context, id, userID string, req *UpdateTaskRequest) (*entity.TaskInstance, error) {
	task, err := s.repos.Instance.FindTask(ctx, id)
	if err != nil {
		return nil, lookup(err, "task instance", id)
	}
	if task.Closed() {
		return nil, conflict("task %s is closed", task.Code)
	}

	updates := map[string]interface{}{}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return nil, invalid("priority", "unknown priority %q", *req.Priority)
		}
		updates["priority"] = *req.Priority
	}
	if req.AssigneeID != nil {
		if err := s.requireUser(ctx, *req.AssigneeID); err != nil {
			return nil, err
		}
		updates["assignee_id"] = *req.AssigneeID
	}
	if req.Remarks != nil {
		updates["remarks"] = *req.Remarks
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}
	updates["updated_at"] = s.now()

	if err := s.repos.Instance.UpdateTask(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	activity := aentity.ActivityUpdate
	if req.AssigneeID != nil && *req.AssigneeID != task.AssigneeID {
		activity = aentity.ActivityAssign
	}
	s.record(userID, activity, aentity.EntityTask, id, fmt.Sprintf("updated task %s", task.Code), updates)
	s.publish(task, id, "updated", valueOr(req.AssigneeID))
	return s.Get(ctx, id)
}

// Close sets closedAt once; closing a closed task is a no-op
func (s *TaskService) Close(ctx context.Context, id, userID string) (*entity.TaskInstance, error) {
	task, err := s.repos.Instance.FindTask(ctx, id)
	if err != nil {
		return nil, lookup(err, "task instance", id)
	}
	changed, err := s.repos.Instance.CloseTask(ctx, id, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("close task: %w", err)
	}
	if changed {
		s.record(userID, aentity.ActivityComplete, aentity.EntityTask, id, fmt.Sprintf("closed task %s", task.Code), nil)
		s.publish(task, id, "closed")
	}
	return s.Get(ctx, id)
}

func (s *TaskService) Archive(ctx context.Context, id, userID string, archived bool) (*entity.TaskInstance, error) {
	task, err := s.repos.Instance.FindTask(ctx, id)
	if err != nil {
		return nil, lookup(err, "task instance", id)
	}
	if err := s.repos.Instance.UpdateTask(ctx, id, map[string]interface{}{"is_archived": archived, "updated_at": s.now()}); err != nil {
		return nil, fmt.Errorf("archive task: %w", err)
	}
	action := "archived"
	if !archived {
		action = "unarchived"
	}
	s.record(userID, aentity.ActivityUpdate, aentity.EntityTask, id, fmt.Sprintf("%s task %s", action, task.Code), nil)
	s.publish(task, id, action)
	return s.Get(ctx, id)
}

// UpdateFnInstance assignee and remarks of an open function
func (s *TaskService) UpdateFnInstance(ctx context.Context, id, userID string, req *UpdateFnRequest) (*entity.FnInstance, error) {
	fn, err := s.repos.Instance.FindFn(ctx, id)
	if err != nil {
		return nil, lookup(err, "fn instance", id)
	}
	if fn.Closed() {
		return nil, conflict("function %s is closed", fn.ID)
	}
	updates := map[string]interface{}{}
	if req.AssigneeID != nil {
		if *req.AssigneeID == "" {
			updates["assignee_id"] = nil
		} else {
			if err := s.requireUser(ctx, *req.AssigneeID); err != nil {
				return nil, err
			}
			updates["assignee_id"] = *req.AssigneeID
		}
	}
	if req.Remarks != nil {
		updates["remarks"] = *req.Remarks
	}
	if len(updates) > 0 {
		updates["updated_at"] = s.now()
		if err := s.repos.Instance.UpdateFn(ctx, id, updates); err != nil {
			return nil, fmt.Errorf("update fn instance: %w", err)
		}
		s.record(userID, aentity.ActivityUpdate, aentity.EntityFunction, id, "updated function", updates)
		if task, err := s.repos.Instance.FindTask(ctx, fn.TaskInstanceID); err == nil {
			s.publish(task, id, "fn_updated", valueOr(req.AssigneeID))
		}
	}
	fn, err = s.repos.Instance.FindFn(ctx, id)
	return fn, lookup(err, "fn instance", id)
}

// CloseFnInstance closes the function and instantiates its follow-up on the
// first close. Closing again returns the function unchanged.
func (s *TaskService) CloseFnInstance(ctx context.Context, id, userID string, req *CloseFnRequest) (*CloseFnResult, error) {
	chosen := ""
	if req != nil {
		chosen = req.NextFnTemplateID
	}
	result := &CloseFnResult{}
	changed := false

	err := s.repos.Instance.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instances := repository.NewInstanceRepository(tx)
		fn, err := instances.FindFn(ctx, id)
		if err != nil {
			return lookup(err, "fn instance", id)
		}
		task, err := instances.FindTask(ctx, fn.TaskInstanceID)
		if err != nil {
			return lookup(err, "task instance", fn.TaskInstanceID)
		}
		if task.Closed() && !fn.Closed() {
			return conflict("task %s is closed", task.Code)
		}
		changed, err = instances.CloseFn(ctx, id, userID, s.now())
		if err != nil {
			return fmt.Errorf("close fn instance: %w", err)
		}
		if changed {
			result.FollowUp, err = s.engine.CreateFollowUp(ctx, tx, fn, chosen, userID)
			if err != nil {
				return err
			}
		}
		result.Fn, err = instances.FindFn(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		details := map[string]interface{}{"task_id": result.Fn.TaskInstanceID}
		if result.FollowUp != nil {
			details["follow_up_fn_instance_id"] = result.FollowUp.ID
		}
		s.record(userID, aentity.ActivityComplete, aentity.EntityFunction, id, "closed function", details)
		if task, err := s.repos.Instance.FindTask(ctx, result.Fn.TaskInstanceID); err == nil {
			s.publish(task, id, "fn_closed", valueOr(result.Fn.AssigneeID))
		}
	}
	return result, nil
}

// CloseFieldInstance closes an open field whose function and task are
// still open. Closing again returns the field unchanged.
func (s *TaskService) CloseFieldInstance(ctx context.Context, id, userID string) (*entity.FieldInstance, error) {
	field, err := s.repos.Instance.FindField(ctx, id)
	if err != nil {
		return nil, lookup(err, "field instance", id)
	}
	if !field.Closed() {
		fn, err := s.repos.Instance.FindFn(ctx, field.FnInstanceID)
		if err != nil {
			return nil, lookup(err, "fn instance", field.FnInstanceID)
		}
		if fn.Closed() {
			return nil, conflict("function %s is closed", fn.ID)
		}
		task, err := s.repos.Instance.FindTask(ctx, field.TaskInstanceID)
		if err != nil {
			return nil, lookup(err, "task instance", field.TaskInstanceID)
		}
		if task.Closed() {
			return nil, conflict("task %s is closed", task.Code)
		}
	}
	changed, err := s.repos.Instance.CloseField(ctx, id, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("close field instance: %w", err)
	}
	if changed {
		s.record(userID, aentity.ActivityComplete, aentity.EntityField, id, "closed field", map[string]interface{}{"task_id": field.TaskInstanceID})
		if task, err := s.repos.Instance.FindTask(ctx, field.TaskInstanceID); err == nil {
			s.publish(task, id, "field_closed")
		}
	}
	field, err = s.repos.Instance.FindField(ctx, id)
	return field, lookup(err, "field instance", id)
}

// SetInputValue writes the value through the rule evaluator
func (s *TaskService) SetInputValue(ctx context.Context, id, userID string, req *SetValueRequest) (*SetValueResult, error) {
	result, err := s.evaluator.SetInputValue(ctx, id, userID, req)
	if err != nil {
		return nil, err
	}
	s.record(userID, aentity.ActivityUpdate, aentity.EntityInput, id, "updated input value",
		map[string]interface{}{"task_id": result.TaskID, "actions": len(result.Results), "failed": len(result.Failed())})
	if task, err := s.repos.Instance.FindTask(ctx, result.TaskID); err == nil {
		s.publish(task, id, "input_updated")
	}
	return result, nil
}

func (s *TaskService) requireUser(ctx context.Context, id string) error {
	ok, err := s.repos.User.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("user", id)
	}
	return nil
}

func (s *TaskService) record(userID string, activity aentity.ActivityType, entityType aentity.EntityType, entityID, description string, details map[string]interface{}) {
	if s.activities == nil {
		return
	}
	a := &aentity.ActivityLog{
		ActivityType: activity,
		EntityType:   entityType,
		EntityID:     entityID,
		UserID:       userID,
		Description:  description,
	}
	if details != nil {
		a.Details = aentity.MarshalJSONValue(details)
	}
	s.activities.LogAsync(a)
}

func (s *TaskService) publish(task *entity.TaskInstance, entityID, action string, extra ...string) {
	if s.hub == nil {
		return
	}
	users := append([]string{task.AssigneeID, task.CreatedByID}, extra...)
	s.hub.PublishTaskUpdate(sse.TaskUpdate{TaskID: task.ID, EntityID: entityID, Action: action}, uniqueStrings(users)...)
}

func valueOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
