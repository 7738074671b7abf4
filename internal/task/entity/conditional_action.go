package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TargetKind which template level a conditional action points at
type TargetKind string

const (
	TargetNone  TargetKind = ""
	TargetTask  TargetKind = "TASK"
	TargetFn    TargetKind = "FN"
	TargetField TargetKind = "FIELD"
	TargetInput TargetKind = "INPUT"
)

// ActionTarget tagged target of a conditional action. The zero value is "no target".
type ActionTarget struct {
	Kind       TargetKind `json:"kind"`
	TemplateID string     `json:"template_id"`
}

func TaskTarget(id string) ActionTarget  { return ActionTarget{Kind: TargetTask, TemplateID: id} }
func FnTarget(id string) ActionTarget    { return ActionTarget{Kind: TargetFn, TemplateID: id} }
func FieldTarget(id string) ActionTarget { return ActionTarget{Kind: TargetField, TemplateID: id} }
func InputTarget(id string) ActionTarget { return ActionTarget{Kind: TargetInput, TemplateID: id} }

// RequiredTarget target kind an action type must carry
func (a ActionType) RequiredTarget() TargetKind {
	switch a {
	case ActionMarkTaskAsDone:
		return TargetTask
	case ActionMarkFnAsDone:
		return TargetFn
	case ActionMarkFieldAsDone:
		return TargetField
	case ActionAddDynamicInput:
		return TargetInput
	default:
		return TargetNone
	}
}

// ErrTargetMismatch action type and target kind disagree
var ErrTargetMismatch = errors.New("conditional action target does not match its type")

// ConditionalAction rule attached to an input template. The four targeted
// columns keep the storage shape; code reads them through Target().
type ConditionalAction struct {
	ID                      string     `json:"id" gorm:"primaryKey;size:36"`
	InputTemplateID         string     `json:"input_template_id" gorm:"size:36;not null;index"`
	Name                    string     `json:"name" gorm:"size:255;not null"`
	Description             string     `json:"description" gorm:"type:text"`
	Type                    ActionType `json:"type" gorm:"size:32;not null;default:ADD_DYNAMIC_INPUT"`
	TargetedTaskTemplateID  *string    `json:"targeted_task_template_id" gorm:"size:36"`
	TargetedFnTemplateID    *string    `json:"targeted_fn_template_id" gorm:"size:36"`
	TargetedFieldTemplateID *string    `json:"targeted_field_template_id" gorm:"size:36"`
	TargetedInputTemplateID *string    `json:"targeted_input_template_id" gorm:"size:36"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`

	Users []ConditionalActionUser `json:"users,omitempty" gorm:"foreignKey:ActionID"`
}

func (ConditionalAction) TableName() string {
	return "conditional_actions"
}

// ConditionalActionUser user notified by a NOTIFY_USERS rule
type ConditionalActionUser struct {
	ActionID  string    `json:"action_id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at"`
}

func (ConditionalActionUser) TableName() string {
	return "conditional_action_users"
}

// ConditionalActionSpec construction input
type ConditionalActionSpec struct {
	InputTemplateID string       `validate:"required"`
	Name            string       `validate:"required,max=255"`
	Description     string       `validate:"max=2000"`
	Type            ActionType   `validate:"required,oneof=MARK_TASK_AS_DONE MARK_FN_AS_DONE MARK_FIELD_AS_DONE NOTIFY_USERS ADD_DYNAMIC_INPUT"`
	Target          ActionTarget `validate:"-"`
	UserIDs         []string     `validate:"omitempty,dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewConditionalAction builds a rule whose target agrees with its type.
func NewConditionalAction(spec ConditionalActionSpec) (*ConditionalAction, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, err
	}
	want := spec.Type.RequiredTarget()
	if spec.Target.Kind != want {
		return nil, fmt.Errorf("%w: %s requires target %q, got %q", ErrTargetMismatch, spec.Type, want, spec.Target.Kind)
	}
	if want != TargetNone && spec.Target.TemplateID == "" {
		return nil, fmt.Errorf("%w: %s target id is empty", ErrTargetMismatch, spec.Type)
	}
	if spec.Type == ActionNotifyUsers && len(spec.UserIDs) == 0 {
		return nil, fmt.Errorf("%w: %s needs at least one user", ErrTargetMismatch, spec.Type)
	}

	a := &ConditionalAction{
		ID:              uuid.New().String(),
		InputTemplateID: spec.InputTemplateID,
		Name:            spec.Name,
		Description:     spec.Description,
		Type:            spec.Type,
	}
	id := spec.Target.TemplateID
	switch spec.Target.Kind {
	case TargetTask:
		a.TargetedTaskTemplateID = &id
	case TargetFn:
		a.TargetedFnTemplateID = &id
	case TargetField:
		a.TargetedFieldTemplateID = &id
	case TargetInput:
		a.TargetedInputTemplateID = &id
	}
	for _, uid := range spec.UserIDs {
		a.Users = append(a.Users, ConditionalActionUser{ActionID: a.ID, UserID: uid})
	}
	return a, nil
}

// Target decodes the stored columns. Rows with more than one targeted
// column, or whose target kind disagrees with Type, return ErrTargetMismatch.
func (a *ConditionalAction) Target() (ActionTarget, error) {
	var targets []ActionTarget
	if a.TargetedTaskTemplateID != nil && *a.TargetedTaskTemplateID != "" {
		targets = append(targets, TaskTarget(*a.TargetedTaskTemplateID))
	}
	if a.TargetedFnTemplateID != nil && *a.TargetedFnTemplateID != "" {
		targets = append(targets, FnTarget(*a.TargetedFnTemplateID))
	}
	if a.TargetedFieldTemplateID != nil && *a.TargetedFieldTemplateID != "" {
		targets = append(targets, FieldTarget(*a.TargetedFieldTemplateID))
	}
	if a.TargetedInputTemplateID != nil && *a.TargetedInputTemplateID != "" {
		targets = append(targets, InputTarget(*a.TargetedInputTemplateID))
	}
	if len(targets) > 1 {
		return ActionTarget{}, fmt.Errorf("%w: %d targets set", ErrTargetMismatch, len(targets))
	}

	var t ActionTarget
	if len(targets) == 1 {
		t = targets[0]
	}
	if want := a.Type.RequiredTarget(); t.Kind != want {
		return ActionTarget{}, fmt.Errorf("%w: %s requires target %q, got %q", ErrTargetMismatch, a.Type, want, t.Kind)
	}
	return t, nil
}
