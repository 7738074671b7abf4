package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/shared/notify"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActionStatus outcome of one conditional action
type ActionStatus string

const (
	ActionApplied ActionStatus = "applied"
	ActionSkipped ActionStatus = "skipped"
	ActionNotMet  ActionStatus = "not_met"
	ActionFailed  ActionStatus = "failed"
)

type ActionResult struct {
	ActionID   string            `json:"actionId"`
	ActionName string            `json:"actionName"`
	Type       entity.ActionType `json:"type"`
	Status     ActionStatus      `json:"status"`
	Error      string            `json:"error,omitempty"`
}

// SetValueRequest value is raw JSON interpreted by the input template type
type SetValueRequest struct {
	Value     json.RawMessage `json:"value"`
	FilePaths []string        `json:"file_paths"`
	Remarks   *string         `json:"remarks"`
}

type SetValueResult struct {
	Input   *entity.InputInstance `json:"input"`
	TaskID  string                `json:"task_id"`
	Results []ActionResult        `json:"results"`
}

// Failed results whose action errored
func (r *SetValueResult) Failed() []ActionResult {
	var out []ActionResult
	for _, a := range r.Results {
		if a.Status == ActionFailed {
			out = append(out, a)
		}
	}
	return out
}

// Evaluator writes input values and runs the conditional actions sourced
// from the input's template
type Evaluator struct {
	db         *gorm.DB
	engine     *Engine
	notifier   Notifier
	activities ActivityRecorder
	comparator *Comparator
	logger     *zap.Logger
	now        func() time.Time

	findDynamic func(*repository.InstanceRepository, context.Context, string, string) (*entity.InputInstance, error)
}

func NewEvaluator(db *gorm.DB, engine *Engine, notifier Notifier, activities ActivityRecorder, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		db:         db,
		engine:     engine,
		notifier:   notifier,
		activities: activities,
		comparator: NewComparator(),
		logger:     logger,
		now:        time.Now,

		findDynamic: (*repository.InstanceRepository).FindDynamicInput,
	}
}

// actionOutcome status of an action plus the error that explains it
type actionOutcome struct {
	status ActionStatus
	err    error
}

// SetInputValue stores the value and evaluates every rule of the input
// template. The value write and the applied actions commit together; each
// action runs in its own savepoint so a failing one is rolled back alone.
// Notifications go out after commit.
func (e *Evaluator) SetInputValue(ctx context.Context, inputID, userID string, req *SetValueRequest) (*SetValueResult, error) {
	result := &SetValueResult{}
	var pending []notify.Notification

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instances := repository.NewInstanceRepository(tx)

		input, err := instances.FindInput(ctx, inputID)
		if err != nil {
			return lookup(err, "input instance", inputID)
		}
		if input.ClosedAt != nil {
			return conflict("input %s is closed", input.ID)
		}
		field, err := instances.FindField(ctx, input.FieldInstanceID)
		if err != nil {
			return lookup(err, "field instance", input.FieldInstanceID)
		}
		if field.Closed() {
			return conflict("field %s is closed", field.ID)
		}
		fn, err := instances.FindFn(ctx, field.FnInstanceID)
		if err != nil {
			return lookup(err, "fn instance", field.FnInstanceID)
		}
		if fn.Closed() {
			return conflict("function %s is closed", fn.ID)
		}
		task, err := instances.FindTask(ctx, input.TaskInstanceID)
		if err != nil {
			return lookup(err, "task instance", input.TaskInstanceID)
		}
		if task.Closed() {
			return conflict("task %s is closed", task.Code)
		}

		tpl := input.InputTemplate
		if tpl == nil {
			tpl, err = repository.NewTemplateRepository(tx).FindInputTemplate(ctx, input.InputTemplateID)
			if err != nil {
				return lookup(err, "input template", input.InputTemplateID)
			}
		}

		value, err := entity.DecodeInputValue(tpl.Type, req.Value)
		if err != nil {
			return invalid("value", "%v", err)
		}
		raw, err := value.JSON()
		if err != nil {
			return invalid("value", "%v", err)
		}
		input.Value = raw
		switch {
		case req.FilePaths != nil:
			input.FilePaths = req.FilePaths
		case value.Kind == entity.ValueFiles:
			input.FilePaths = value.Files
		}
		if req.Remarks != nil {
			input.Remarks = *req.Remarks
		}
		input.UpdatedByID = &userID
		input.UpdatedAt = e.now()
		if err := instances.UpdateInputValue(ctx, input); err != nil {
			return fmt.Errorf("update input value: %w", err)
		}
		result.Input = input
		result.TaskID = task.ID

		actions, err := repository.NewConditionalActionRepository(tx).ListByInputTemplate(ctx, tpl.ID)
		if err != nil {
			return fmt.Errorf("load conditional actions: %w", err)
		}
		if len(actions) == 0 {
			return nil
		}

		met, condErr := e.condition(tpl, value)
		scope := &actionScope{task: task, fn: fn, field: field, userID: userID}

		for i := range actions {
			action := &actions[i]
			res := ActionResult{ActionID: action.ID, ActionName: action.Name, Type: action.Type}

			out := e.evaluate(ctx, tx, action, scope, met, condErr, &pending)
			res.Status = out.status
			if out.err != nil {
				res.Error = out.err.Error()
				e.logAction(action, input.ID, out)
			}
			result.Results = append(result.Results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, n := range pending {
		e.dispatch(n, userID)
	}
	for _, r := range result.Failed() {
		e.recordFailure(ctx, result, r, userID)
	}
	return result, nil
}

// condition evaluates the template trigger once per write
func (e *Evaluator) condition(tpl *entity.InputTemplate, value entity.InputValue) (bool, error) {
	if tpl.Condition == nil || tpl.ComparisonValue == nil {
		return false, &ConfigurationError{Message: fmt.Sprintf("input template %s has rules but no condition", tpl.ID)}
	}
	return e.comparator.Evaluate(*tpl.Condition, *tpl.ComparisonValue, value)
}

type actionScope struct {
	task   *entity.TaskInstance
	fn     *entity.FnInstance
	field  *entity.FieldInstance
	userID string
}

func (e *Evaluator) evaluate(ctx context.Context, tx *gorm.DB, action *entity.ConditionalAction, scope *actionScope, met bool, condErr error, pending *[]notify.Notification) actionOutcome {
	target, err := action.Target()
	if err != nil {
		return actionOutcome{ActionSkipped, &ConfigurationError{Message: "conditional action " + action.ID, Err: err}}
	}
	if condErr != nil {
		var cfg *ConfigurationError
		if errors.As(condErr, &cfg) {
			return actionOutcome{ActionSkipped, condErr}
		}
		return actionOutcome{ActionFailed, condErr}
	}
	if !met {
		return actionOutcome{status: ActionNotMet}
	}

	if action.Type == entity.ActionNotifyUsers {
		ids := make([]string, 0, len(action.Users))
		for _, u := range action.Users {
			ids = append(ids, u.UserID)
		}
		if len(ids) == 0 {
			return actionOutcome{ActionSkipped, &ConfigurationError{Message: fmt.Sprintf("conditional action %s has no users to notify", action.ID)}}
		}
		*pending = append(*pending, notify.Notification{
			UserIDs:    ids,
			Title:      action.Name,
			Body:       action.Description,
			EntityType: string(aentity.EntityTask),
			EntityID:   scope.task.ID,
			Data: map[string]interface{}{
				"task_code": scope.task.Code,
				"action_id": action.ID,
			},
		})
		return actionOutcome{status: ActionApplied}
	}

	// anything short of applied rolls its savepoint back; a failed insert
	// leaves postgres transactions unusable until then
	var out actionOutcome
	err = tx.Transaction(func(sp *gorm.DB) error {
		out = e.apply(ctx, sp, action, target, scope)
		if out.status != ActionApplied {
			return errDiscardSavepoint
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDiscardSavepoint) {
		return actionOutcome{ActionFailed, err}
	}
	return out
}

var errDiscardSavepoint = errors.New("discard savepoint")

// apply runs one targeted action inside a savepoint
func (e *Evaluator) apply(ctx context.Context, sp *gorm.DB, action *entity.ConditionalAction, target entity.ActionTarget, scope *actionScope) actionOutcome {
	instances := repository.NewInstanceRepository(sp)
	now := e.now()

	switch action.Type {
	case entity.ActionMarkTaskAsDone:
		if target.TemplateID != scope.task.TaskTemplateID {
			return actionOutcome{ActionSkipped, &ConfigurationError{Message: fmt.Sprintf("task template %s is not the template of task %s", target.TemplateID, scope.task.Code)}}
		}
		changed, err := instances.CloseTask(ctx, scope.task.ID, scope.userID, now)
		return closeOutcome(changed, err)

	case entity.ActionMarkFnAsDone:
		fn, err := instances.FindFnByTemplate(ctx, scope.task.ID, target.TemplateID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return actionOutcome{ActionSkipped, notFound("fn instance of template", target.TemplateID)}
			}
			return actionOutcome{ActionFailed, err}
		}
		changed, err := instances.CloseFn(ctx, fn.ID, scope.userID, now)
		if err != nil || !changed {
			return closeOutcome(changed, err)
		}
		if _, err := e.engine.CreateFollowUp(ctx, sp, fn, "", scope.userID); err != nil {
			return actionOutcome{ActionFailed, err}
		}
		return actionOutcome{status: ActionApplied}

	case entity.ActionMarkFieldAsDone:
		field, err := instances.FindFieldByTemplate(ctx, scope.task.ID, target.TemplateID, scope.fn.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return actionOutcome{ActionSkipped, notFound("field instance of template", target.TemplateID)}
			}
			return actionOutcome{ActionFailed, err}
		}
		changed, err := instances.CloseField(ctx, field.ID, scope.userID, now)
		return closeOutcome(changed, err)

	case entity.ActionAddDynamicInput:
		return e.addDynamicInput(ctx, sp, action, target, scope)
	}
	return actionOutcome{ActionSkipped, &ConfigurationError{Message: fmt.Sprintf("unknown action type %q", action.Type)}}
}

func closeOutcome(changed bool, err error) actionOutcome {
	if err != nil {
		return actionOutcome{ActionFailed, err}
	}
	if !changed {
		return actionOutcome{status: ActionSkipped}
	}
	return actionOutcome{status: ActionApplied}
}

// addDynamicInput creates at most one input per (field, action); the unique
// index on that pair settles concurrent writers
func (e *Evaluator) addDynamicInput(ctx context.Context, sp *gorm.DB, action *entity.ConditionalAction, target entity.ActionTarget, scope *actionScope) actionOutcome {
	instances := repository.NewInstanceRepository(sp)

	if _, err := e.findDynamic(instances, ctx, scope.field.ID, action.ID); err == nil {
		return actionOutcome{status: ActionSkipped}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return actionOutcome{ActionFailed, err}
	}

	templates := repository.NewTemplateRepository(sp)
	tpl, err := templates.FindInputTemplate(ctx, target.TemplateID)
	if err != nil {
		return actionOutcome{ActionFailed, lookup(err, "input template", target.TemplateID)}
	}
	maxOrder, err := instances.MaxInputSortOrder(ctx, scope.field.ID)
	if err != nil {
		return actionOutcome{ActionFailed, err}
	}

	actionID := action.ID
	input := &entity.InputInstance{
		ID:                            uuid.New().String(),
		TaskInstanceID:                scope.task.ID,
		FieldInstanceID:               scope.field.ID,
		InputTemplateID:               tpl.ID,
		IsDynamicallyCreated:          true,
		TriggeringConditionalActionID: &actionID,
		SortOrder:                     maxOrder + 1,
		CreatedByID:                   scope.userID,
	}
	if err := instances.CreateInput(ctx, input); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return actionOutcome{status: ActionSkipped}
		}
		return actionOutcome{ActionFailed, fmt.Errorf("create dynamic input: %w", err)}
	}

	dropdowns, err := templates.ListDropdownTemplates(ctx, "input_template_id", tpl.ID)
	if err != nil {
		return actionOutcome{ActionFailed, err}
	}
	if err := instances.LinkDropdowns(ctx, inputDropdownLinks(input.ID, dropdowns)); err != nil {
		return actionOutcome{ActionFailed, err}
	}
	return actionOutcome{status: ActionApplied}
}

func (e *Evaluator) logAction(action *entity.ConditionalAction, inputID string, out actionOutcome) {
	fields := []zap.Field{
		zap.String("action_id", action.ID),
		zap.String("action_type", string(action.Type)),
		zap.String("input_id", inputID),
		zap.Error(out.err),
	}
	var cfg *ConfigurationError
	switch {
	case out.status == ActionFailed:
		e.logger.Error("conditional action failed", fields...)
	case errors.As(out.err, &cfg):
		e.logger.Warn("conditional action misconfigured, skipped", fields...)
	default:
		e.logger.Info("conditional action skipped", fields...)
	}
}

// dispatch sends a notification in the background; failures are logged
// and recorded as NOTIFICATION activities
func (e *Evaluator) dispatch(n notify.Notification, userID string) {
	if e.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.logger.Warn("notify users failed",
				zap.Strings("user_ids", n.UserIDs),
				zap.String("entity_id", n.EntityID),
				zap.Error(err))
			if e.activities != nil {
				status := 500
				e.activities.LogAsync(&aentity.ActivityLog{
					ActivityType: aentity.ActivityNotification,
					EntityType:   aentity.EntityNotification,
					EntityID:     n.EntityID,
					UserID:       userID,
					Description:  "notification failed: " + n.Title,
					Details:      aentity.MarshalJSONValue(map[string]interface{}{"error": err.Error(), "user_ids": n.UserIDs}),
					StatusCode:   &status,
				})
			}
		}
	}()
}

func (e *Evaluator) recordFailure(ctx context.Context, result *SetValueResult, r ActionResult, userID string) {
	if e.activities == nil {
		return
	}
	status := 500
	err := e.activities.Log(ctx, &aentity.ActivityLog{
		ActivityType: aentity.ActivityError,
		EntityType:   aentity.EntityInput,
		EntityID:     result.Input.ID,
		UserID:       userID,
		Description:  fmt.Sprintf("conditional action %s failed: %s", r.ActionName, r.Error),
		Details: aentity.MarshalJSONValue(map[string]interface{}{
			"action_id":   r.ActionID,
			"action_type": r.Type,
			"task_id":     result.TaskID,
			"error":       r.Error,
		}),
		StatusCode: &status,
	})
	if err != nil {
		e.logger.Warn("record action failure", zap.String("action_id", r.ActionID), zap.Error(err))
	}
}
