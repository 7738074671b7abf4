package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TemplateService administration of the template graph
type TemplateService struct {
	repo    *repository.TemplateRepository
	actions *repository.ConditionalActionRepository
	users   *repository.UserRepository
}

func NewTemplateService(repo *repository.TemplateRepository, actions *repository.ConditionalActionRepository, users *repository.UserRepository) *TemplateService {
	return &TemplateService{repo: repo, actions: actions, users: users}
}

// TemplateRequest name and description shared by every template level
type TemplateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type FnTemplateRequest struct {
	Name                     string                `json:"name" binding:"required"`
	Description              string                `json:"description"`
	Department               entity.DepartmentType `json:"department"`
	IsChoice                 bool                  `json:"is_choice"`
	NextFollowUpFnTemplateID *string               `json:"next_follow_up_fn_template_id"`
	Type                     entity.FnType         `json:"type"`
}

type InputTemplateRequest struct {
	Name            string            `json:"name" binding:"required"`
	Description     string            `json:"description"`
	Type            entity.InputType  `json:"type"`
	Condition       *entity.Condition `json:"condition"`
	ComparisonValue *string           `json:"comparison_value"`
}

// AttachRequest links a child template; SortOrder defaults to the end
type AttachRequest struct {
	SortOrder *int `json:"sort_order"`
}

type DropdownTemplateRequest struct {
	DropdownItemID  string  `json:"dropdown_item_id" binding:"required"`
	TaskTemplateID  *string `json:"task_template_id"`
	FnTemplateID    *string `json:"fn_template_id"`
	InputTemplateID *string `json:"input_template_id"`
}

// MetadataTemplateRequest names exactly one owner template
type MetadataTemplateRequest struct {
	TaskTemplateID  *string `json:"task_template_id"`
	FnTemplateID    *string `json:"fn_template_id"`
	FieldTemplateID *string `json:"field_template_id"`
	InputTemplateID *string `json:"input_template_id"`
}

type ConditionalActionRequest struct {
	InputTemplateID  string            `json:"input_template_id" binding:"required"`
	Name             string            `json:"name" binding:"required"`
	Description      string            `json:"description"`
	Type             entity.ActionType `json:"type"`
	TargetKind       entity.TargetKind `json:"target_kind"`
	TargetTemplateID string            `json:"target_template_id"`
	UserIDs          []string          `json:"user_ids"`
}

// ---- task templates ----

func (s *TemplateService) CreateTaskTemplate(ctx context.Context, req *TemplateRequest) (*entity.TaskTemplate, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name", "is required")
	}
	t := &entity.TaskTemplate{ID: uuid.New().String(), Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := s.repo.CreateTaskTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create task template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) GetTaskTemplate(ctx context.Context, id string) (*entity.TaskTemplate, error) {
	t, err := s.repo.FindTaskTemplate(ctx, id)
	return t, lookup(err, "task template", id)
}

func (s *TemplateService) ListTaskTemplates(ctx context.Context, keyword string) ([]entity.TaskTemplate, error) {
	return s.repo.ListTaskTemplates(ctx, keyword)
}

func (s *TemplateService) UpdateTaskTemplate(ctx context.Context, id string, req *TemplateRequest) (*entity.TaskTemplate, error) {
	t, err := s.repo.FindTaskTemplate(ctx, id)
	if err != nil {
		return nil, lookup(err, "task template", id)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name", "is required")
	}
	t.Name = strings.TrimSpace(req.Name)
	t.Description = req.Description
	if err := s.repo.UpdateTaskTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update task template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) DeleteTaskTemplate(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteTaskTemplate(ctx, id), "task template", id)
}

// GetTaskTemplateGraph the template with every level resolved
func (s *TemplateService) GetTaskTemplateGraph(ctx context.Context, id string) (*entity.TemplateGraph, error) {
	g, err := s.repo.LoadGraph(ctx, id)
	if err != nil {
		return nil, lookup(err, "task template", id)
	}
	return g, nil
}

// ---- fn templates ----

func (s *TemplateService) CreateFnTemplate(ctx context.Context, req *FnTemplateRequest) (*entity.FnTemplate, error) {
	t := &entity.FnTemplate{ID: uuid.New().String()}
	if err := s.applyFn(ctx, t, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateFnTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create fn template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) GetFnTemplate(ctx context.Context, id string) (*entity.FnTemplate, error) {
	t, err := s.repo.FindFnTemplate(ctx, id)
	return t, lookup(err, "fn template", id)
}

func (s *TemplateService) ListFnTemplates(ctx context.Context, keyword string) ([]entity.FnTemplate, error) {
	return s.repo.ListFnTemplates(ctx, keyword)
}

func (s *TemplateService) UpdateFnTemplate(ctx context.Context, id string, req *FnTemplateRequest) (*entity.FnTemplate, error) {
	t, err := s.repo.FindFnTemplate(ctx, id)
	if err != nil {
		return nil, lookup(err, "fn template", id)
	}
	if err := s.applyFn(ctx, t, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateFnTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update fn template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) DeleteFnTemplate(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteFnTemplate(ctx, id), "fn template", id)
}

func (s *TemplateService) applyFn(ctx context.Context, t *entity.FnTemplate, req *FnTemplateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("name", "is required")
	}
	department := req.Department
	if department == "" {
		department = entity.DepartmentService
	}
	if !department.Valid() {
		return invalid("department", "unknown department %q", req.Department)
	}
	fnType := req.Type
	if fnType == "" {
		fnType = entity.FnTypeNormal
	}
	if !fnType.Valid() {
		return invalid("type", "unknown fn type %q", req.Type)
	}

	var next *string
	if req.NextFollowUpFnTemplateID != nil && *req.NextFollowUpFnTemplateID != "" {
		id := *req.NextFollowUpFnTemplateID
		if id == t.ID {
			return invalid("next_follow_up_fn_template_id", "a function cannot follow itself")
		}
		if _, err := s.repo.FindFnTemplate(ctx, id); err != nil {
			return lookup(err, "fn template", id)
		}
		next = &id
	}

	t.Name = strings.TrimSpace(req.Name)
	t.Description = req.Description
	t.Department = department
	t.IsChoice = req.IsChoice
	t.NextFollowUpFnTemplateID = next
	t.Type = fnType
	return nil
}

// ---- field templates ----

func (s *TemplateService) CreateFieldTemplate(ctx context.Context, req *TemplateRequest) (*entity.FieldTemplate, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name", "is required")
	}
	t := &entity.FieldTemplate{ID: uuid.New().String(), Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := s.repo.CreateFieldTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create field template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) GetFieldTemplate(ctx context.Context, id string) (*entity.FieldTemplate, error) {
	t, err := s.repo.FindFieldTemplate(ctx, id)
	return t, lookup(err, "field template", id)
}

func (s *TemplateService) ListFieldTemplates(ctx context.Context, keyword string) ([]entity.FieldTemplate, error) {
	return s.repo.ListFieldTemplates(ctx, keyword)
}

func (s *TemplateService) UpdateFieldTemplate(ctx context.Context, id string, req *TemplateRequest) (*entity.FieldTemplate, error) {
	t, err := s.repo.FindFieldTemplate(ctx, id)
	if err != nil {
		return nil, lookup(err, "field template", id)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, invalid("name", "is required")
	}
	t.Name = strings.TrimSpace(req.Name)
	t.Description = req.Description
	if err := s.repo.UpdateFieldTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update field template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) DeleteFieldTemplate(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteFieldTemplate(ctx, id), "field template", id)
}

// ---- input templates ----

func (s *TemplateService) CreateInputTemplate(ctx context.Context, req *InputTemplateRequest) (*entity.InputTemplate, error) {
	t := &entity.InputTemplate{ID: uuid.New().String()}
	if err := applyInput(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.CreateInputTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("create input template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) GetInputTemplate(ctx context.Context, id string) (*entity.InputTemplate, error) {
	t, err := s.repo.FindInputTemplate(ctx, id)
	return t, lookup(err, "input template", id)
}

func (s *TemplateService) ListInputTemplates(ctx context.Context, keyword string) ([]entity.InputTemplate, error) {
	return s.repo.ListInputTemplates(ctx, keyword)
}

func (s *TemplateService) UpdateInputTemplate(ctx context.Context, id string, req *InputTemplateRequest) (*entity.InputTemplate, error) {
	t, err := s.repo.FindInputTemplate(ctx, id)
	if err != nil {
		return nil, lookup(err, "input template", id)
	}
	if err := applyInput(t, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateInputTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("update input template: %w", err)
	}
	return t, nil
}

func (s *TemplateService) DeleteInputTemplate(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteInputTemplate(ctx, id), "input template", id)
}

// applyInput condition and comparison value come as a pair; ordering
// conditions need a numeric comparison value
func applyInput(t *entity.InputTemplate, req *InputTemplateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return invalid("name", "is required")
	}
	inputType := req.Type
	if inputType == "" {
		inputType = entity.InputText
	}
	if !inputType.Valid() {
		return invalid("type", "unknown input type %q", req.Type)
	}

	var cond *entity.Condition
	var cmp *string
	hasCond := req.Condition != nil && *req.Condition != ""
	hasValue := req.ComparisonValue != nil && strings.TrimSpace(*req.ComparisonValue) != ""
	if hasCond != hasValue {
		return invalid("condition", "condition and comparison_value must be set together")
	}
	if hasCond {
		c := *req.Condition
		if !c.Valid() {
			return invalid("condition", "unknown condition %q", c)
		}
		v := strings.TrimSpace(*req.ComparisonValue)
		if c.Ordering() {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				return invalid("comparison_value", "%s needs a numeric comparison value", c)
			}
		}
		cond, cmp = &c, &v
	}

	t.Name = strings.TrimSpace(req.Name)
	t.Description = req.Description
	t.Type = inputType
	t.Condition = cond
	t.ComparisonValue = cmp
	return nil
}

// ---- attach / detach ----

func (s *TemplateService) AttachFnTemplate(ctx context.Context, taskTemplateID, fnTemplateID string, req *AttachRequest) (*entity.TaskTemplateFnTemplate, error) {
	if _, err := s.repo.FindTaskTemplate(ctx, taskTemplateID); err != nil {
		return nil, lookup(err, "task template", taskTemplateID)
	}
	if _, err := s.repo.FindFnTemplate(ctx, fnTemplateID); err != nil {
		return nil, lookup(err, "fn template", fnTemplateID)
	}
	order, err := s.sortOrder(ctx, req, &entity.TaskTemplateFnTemplate{}, "task_template_id", taskTemplateID)
	if err != nil {
		return nil, err
	}
	link := &entity.TaskTemplateFnTemplate{TaskTemplateID: taskTemplateID, FnTemplateID: fnTemplateID, SortOrder: order}
	return link, s.attach(ctx, link)
}

func (s *TemplateService) DetachFnTemplate(ctx context.Context, taskTemplateID, fnTemplateID string) error {
	err := s.repo.Detach(ctx, &entity.TaskTemplateFnTemplate{TaskTemplateID: taskTemplateID, FnTemplateID: fnTemplateID})
	return lookup(err, "fn template link", fnTemplateID)
}

func (s *TemplateService) AttachFieldTemplate(ctx context.Context, fnTemplateID, fieldTemplateID string, req *AttachRequest) (*entity.FnTemplateFieldTemplate, error) {
	if _, err := s.repo.FindFnTemplate(ctx, fnTemplateID); err != nil {
		return nil, lookup(err, "fn template", fnTemplateID)
	}
	if _, err := s.repo.FindFieldTemplate(ctx, fieldTemplateID); err != nil {
		return nil, lookup(err, "field template", fieldTemplateID)
	}
	order, err := s.sortOrder(ctx, req, &entity.FnTemplateFieldTemplate{}, "fn_template_id", fnTemplateID)
	if err != nil {
		return nil, err
	}
	link := &entity.FnTemplateFieldTemplate{FnTemplateID: fnTemplateID, FieldTemplateID: fieldTemplateID, SortOrder: order}
	return link, s.attach(ctx, link)
}

func (s *TemplateService) DetachFieldTemplate(ctx context.Context, fnTemplateID, fieldTemplateID string) error {
	err := s.repo.Detach(ctx, &entity.FnTemplateFieldTemplate{FnTemplateID: fnTemplateID, FieldTemplateID: fieldTemplateID})
	return lookup(err, "field template link", fieldTemplateID)
}

func (s *TemplateService) AttachInputTemplate(ctx context.Context, fieldTemplateID, inputTemplateID string, req *AttachRequest) (*entity.FieldTemplateInputTemplate, error) {
	if _, err := s.repo.FindFieldTemplate(ctx, fieldTemplateID); err != nil {
		return nil, lookup(err, "field template", fieldTemplateID)
	}
	if _, err := s.repo.FindInputTemplate(ctx, inputTemplateID); err != nil {
		return nil, lookup(err, "input template", inputTemplateID)
	}
	order, err := s.sortOrder(ctx, req, &entity.FieldTemplateInputTemplate{}, "field_template_id", fieldTemplateID)
	if err != nil {
		return nil, err
	}
	link := &entity.FieldTemplateInputTemplate{FieldTemplateID: fieldTemplateID, InputTemplateID: inputTemplateID, SortOrder: order}
	return link, s.attach(ctx, link)
}

func (s *TemplateService) DetachInputTemplate(ctx context.Context, fieldTemplateID, inputTemplateID string) error {
	err := s.repo.Detach(ctx, &entity.FieldTemplateInputTemplate{FieldTemplateID: fieldTemplateID, InputTemplateID: inputTemplateID})
	return lookup(err, "input template link", inputTemplateID)
}

func (s *TemplateService) sortOrder(ctx context.Context, req *AttachRequest, model interface{}, column, parentID string) (int, error) {
	if req != nil && req.SortOrder != nil {
		return *req.SortOrder, nil
	}
	return s.repo.NextSortOrder(ctx, model, column, parentID)
}

func (s *TemplateService) attach(ctx context.Context, link interface{}) error {
	if err := s.repo.Attach(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return conflict("template is already attached")
		}
		return fmt.Errorf("attach template: %w", err)
	}
	return nil
}

// ---- dropdowns ----

func (s *TemplateService) CreateDropdownItem(ctx context.Context, name string) (*entity.DropdownItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	item := &entity.DropdownItem{ID: uuid.New().String(), Name: name}
	if err := s.repo.CreateDropdownItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create dropdown item: %w", err)
	}
	return item, nil
}

func (s *TemplateService) ListDropdownItems(ctx context.Context, keyword string) ([]entity.DropdownItem, error) {
	return s.repo.ListDropdownItems(ctx, keyword)
}

func (s *TemplateService) GetDropdownItem(ctx context.Context, id string) (*entity.DropdownItem, error) {
	item, err := s.repo.FindDropdownItem(ctx, id)
	return item, lookup(err, "dropdown item", id)
}

func (s *TemplateService) UpdateDropdownItem(ctx context.Context, id, name string) (*entity.DropdownItem, error) {
	item, err := s.repo.FindDropdownItem(ctx, id)
	if err != nil {
		return nil, lookup(err, "dropdown item", id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	item.Name = name
	if err := s.repo.UpdateDropdownItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update dropdown item: %w", err)
	}
	return item, nil
}

func (s *TemplateService) DeleteDropdownItem(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteDropdownItem(ctx, id), "dropdown item", id)
}

// CreateDropdownTemplate attaches an item to exactly one task, fn or input template
func (s *TemplateService) CreateDropdownTemplate(ctx context.Context, req *DropdownTemplateRequest) (*entity.DropdownTemplate, error) {
	if _, err := s.repo.FindDropdownItem(ctx, req.DropdownItemID); err != nil {
		return nil, lookup(err, "dropdown item", req.DropdownItemID)
	}
	d := &entity.DropdownTemplate{ID: uuid.New().String(), DropdownItemID: req.DropdownItemID}
	owners := 0
	if id := nonEmpty(req.TaskTemplateID); id != nil {
		if _, err := s.repo.FindTaskTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "task template", *id)
		}
		d.TaskTemplateID = id
		owners++
	}
	if id := nonEmpty(req.FnTemplateID); id != nil {
		if _, err := s.repo.FindFnTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "fn template", *id)
		}
		d.FnTemplateID = id
		owners++
	}
	if id := nonEmpty(req.InputTemplateID); id != nil {
		if _, err := s.repo.FindInputTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "input template", *id)
		}
		d.InputTemplateID = id
		owners++
	}
	if owners != 1 {
		return nil, invalid("", "exactly one of task_template_id, fn_template_id, input_template_id is required")
	}
	if err := s.repo.CreateDropdownTemplate(ctx, d); err != nil {
		return nil, fmt.Errorf("create dropdown template: %w", err)
	}
	return d, nil
}

// ListDropdownTemplates optionally filtered by owner ("task", "fn", "input")
func (s *TemplateService) ListDropdownTemplates(ctx context.Context, ownerKind, ownerID string) ([]entity.DropdownTemplate, error) {
	column := ""
	switch ownerKind {
	case "":
	case "task":
		column = "task_template_id"
	case "fn":
		column = "fn_template_id"
	case "input":
		column = "input_template_id"
	default:
		return nil, invalid("owner", "unknown owner kind %q", ownerKind)
	}
	return s.repo.ListDropdownTemplates(ctx, column, ownerID)
}

func (s *TemplateService) DeleteDropdownTemplate(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteDropdownTemplate(ctx, id), "dropdown template", id)
}

// ---- metadata templates ----

func (s *TemplateService) CreateMetadataTemplate(ctx context.Context, req *MetadataTemplateRequest) (*entity.MetadataTemplate, error) {
	m := &entity.MetadataTemplate{ID: uuid.New().String()}
	owners := 0
	if id := nonEmpty(req.TaskTemplateID); id != nil {
		if _, err := s.repo.FindTaskTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "task template", *id)
		}
		m.TaskTemplateID = id
		owners++
	}
	if id := nonEmpty(req.FnTemplateID); id != nil {
		if _, err := s.repo.FindFnTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "fn template", *id)
		}
		m.FnTemplateID = id
		owners++
	}
	if id := nonEmpty(req.FieldTemplateID); id != nil {
		if _, err := s.repo.FindFieldTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "field template", *id)
		}
		m.FieldTemplateID = id
		owners++
	}
	if id := nonEmpty(req.InputTemplateID); id != nil {
		if _, err := s.repo.FindInputTemplate(ctx, *id); err != nil {
			return nil, lookup(err, "input template", *id)
		}
		m.InputTemplateID = id
		owners++
	}
	if owners != 1 {
		return nil, invalid("", "exactly one of task_template_id, fn_template_id, field_template_id, input_template_id is required")
	}
	if err := s.repo.CreateMetadataTemplate(ctx, m); err != nil {
		return nil, fmt.Errorf("create metadata template: %w", err)
	}
	return m, nil
}

func (s *TemplateService) GetMetadataTemplate(ctx context.Context, id string) (*entity.MetadataTemplate, error) {
	m, err := s.repo.FindMetadataTemplate(ctx, id)
	return m, lookup(err, "metadata template", id)
}

// ListMetadataTemplates optionally filtered by owner ("task", "fn", "field", "input")
func (s *TemplateService) ListMetadataTemplates(ctx context.Context, ownerKind, ownerID string) ([]entity.MetadataTemplate, error) {
	column := ""
	switch ownerKind {
	case "":
	case "task", "fn", "field", "input":
		column = ownerKind + "_template_id"
	default:
		return nil, invalid("owner", "unknown owner kind %q", ownerKind)
	}
	return s.repo.ListMetadataTemplates(ctx, column, ownerID)
}

// DeleteMetadataTemplate also removes the instances created from it
func (s *TemplateService) DeleteMetadataTemplate(ctx context.Context, id string) error {
	return lookup(s.repo.DeleteMetadataTemplate(ctx, id), "metadata template", id)
}

// ---- conditional actions ----

// CreateConditionalAction validates the rule, its target and the notify users
func (s *TemplateService) CreateConditionalAction(ctx context.Context, req *ConditionalActionRequest) (*entity.ConditionalAction, error) {
	if _, err := s.repo.FindInputTemplate(ctx, req.InputTemplateID); err != nil {
		return nil, lookup(err, "input template", req.InputTemplateID)
	}
	actionType := req.Type
	if actionType == "" {
		actionType = entity.ActionAddDynamicInput
	}
	kind := req.TargetKind
	if kind == "" && req.TargetTemplateID != "" {
		kind = actionType.RequiredTarget()
	}
	target := entity.ActionTarget{Kind: kind, TemplateID: req.TargetTemplateID}

	action, err := entity.NewConditionalAction(entity.ConditionalActionSpec{
		InputTemplateID: req.InputTemplateID,
		Name:            strings.TrimSpace(req.Name),
		Description:     req.Description,
		Type:            actionType,
		Target:          target,
		UserIDs:         uniqueStrings(req.UserIDs),
	})
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, invalid("", "%s", describeValidation(err))
		}
		return nil, invalid("target", "%v", err)
	}

	if err := s.checkTarget(ctx, target); err != nil {
		return nil, err
	}
	if len(action.Users) > 0 {
		ids := make([]string, len(action.Users))
		for i, u := range action.Users {
			ids[i] = u.UserID
		}
		found, err := s.users.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(found) != len(ids) {
			return nil, invalid("user_ids", "unknown user id")
		}
	}

	if err := s.actions.Create(ctx, action); err != nil {
		return nil, fmt.Errorf("create conditional action: %w", err)
	}
	return action, nil
}

func (s *TemplateService) checkTarget(ctx context.Context, target entity.ActionTarget) error {
	var err error
	switch target.Kind {
	case entity.TargetTask:
		_, err = s.repo.FindTaskTemplate(ctx, target.TemplateID)
	case entity.TargetFn:
		_, err = s.repo.FindFnTemplate(ctx, target.TemplateID)
	case entity.TargetField:
		_, err = s.repo.FindFieldTemplate(ctx, target.TemplateID)
	case entity.TargetInput:
		_, err = s.repo.FindInputTemplate(ctx, target.TemplateID)
	default:
		return nil
	}
	return lookup(err, strings.ToLower(string(target.Kind))+" template", target.TemplateID)
}

func (s *TemplateService) ListConditionalActions(ctx context.Context, inputTemplateID string) ([]entity.ConditionalAction, error) {
	return s.actions.ListByInputTemplate(ctx, inputTemplateID)
}

func (s *TemplateService) GetConditionalAction(ctx context.Context, id string) (*entity.ConditionalAction, error) {
	a, err := s.actions.FindByID(ctx, id)
	return a, lookup(err, "conditional action", id)
}

func (s *TemplateService) DeleteConditionalAction(ctx context.Context, id string) error {
	return lookup(s.actions.Delete(ctx, id), "conditional action", id)
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}
