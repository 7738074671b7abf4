package entity

import (
	"time"
)

// TaskInstance a task template opened for a customer
type TaskInstance struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	Code           string     `json:"code" gorm:"size:32;not null;uniqueIndex"`
	TaskTemplateID string     `json:"task_template_id" gorm:"size:36;not null;index"`
	CustomerID     string     `json:"customer_id" gorm:"size:36;not null;index"`
	Priority       Priority   `json:"priority" gorm:"size:16;not null;default:NORMAL"`
	CreatedByID    string     `json:"created_by_id" gorm:"size:36;not null"`
	AssigneeID     string     `json:"assignee_id" gorm:"size:36;not null;index"`
	ClosedByID     *string    `json:"closed_by_id" gorm:"size:36"`
	IsArchived     bool       `json:"is_archived" gorm:"not null;default:false"`
	Remarks        string     `json:"remarks" gorm:"type:text"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ClosedAt       *time.Time `json:"closed_at"`

	TaskTemplate *TaskTemplate `json:"task_template,omitempty" gorm:"foreignKey:TaskTemplateID"`
	Customer     *Customer     `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	FnInstances  []FnInstance  `json:"fn_instances,omitempty" gorm:"foreignKey:TaskInstanceID"`

	MetadataInstances []MetadataInstance `json:"metadata_instances,omitempty" gorm:"foreignKey:TaskInstanceID"`
}

func (TaskInstance) TableName() string {
	return "task_instances"
}

// Closed reports whether closedAt is set
func (t *TaskInstance) Closed() bool { return t.ClosedAt != nil }

// FnInstance a function template instantiated inside a task instance
type FnInstance struct {
	ID                       string     `json:"id" gorm:"primaryKey;size:36"`
	TaskInstanceID           string     `json:"task_instance_id" gorm:"size:36;not null;index;uniqueIndex:idx_fn_follow_up,priority:1"`
	FnTemplateID             string     `json:"fn_template_id" gorm:"size:36;not null;index;uniqueIndex:idx_fn_follow_up,priority:2"`
	PredecessorFnInstanceID  *string    `json:"predecessor_fn_instance_id" gorm:"size:36;index"`
	NextFollowUpFnTemplateID *string    `json:"next_follow_up_fn_template_id" gorm:"size:36"`
	FollowUpKey              *string    `json:"-" gorm:"size:16;uniqueIndex:idx_fn_follow_up,priority:3"`
	SortOrder                int        `json:"sort_order" gorm:"not null;default:0"`
	AssigneeID               *string    `json:"assignee_id" gorm:"size:36;index"`
	CreatedByID              string     `json:"created_by_id" gorm:"size:36;not null"`
	ClosedByID               *string    `json:"closed_by_id" gorm:"size:36"`
	Remarks                  string     `json:"remarks" gorm:"type:text"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
	ClosedAt                 *time.Time `json:"closed_at"`

	FnTemplate     *FnTemplate     `json:"fn_template,omitempty" gorm:"foreignKey:FnTemplateID"`
	FieldInstances []FieldInstance `json:"field_instances,omitempty" gorm:"foreignKey:FnInstanceID"`
}

func (FnInstance) TableName() string {
	return "fn_instances"
}

func (f *FnInstance) Closed() bool { return f.ClosedAt != nil }

// FollowUpKeyLazy marks a function instance created as a follow-up; at most
// one such instance exists per task and function template
const FollowUpKeyLazy = "follow-up"

// FieldInstance a field template instantiated inside a function instance
type FieldInstance struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	TaskInstanceID  string     `json:"task_instance_id" gorm:"size:36;not null;index"`
	FnInstanceID    string     `json:"fn_instance_id" gorm:"size:36;not null;index"`
	FieldTemplateID string     `json:"field_template_id" gorm:"size:36;not null;index"`
	SortOrder       int        `json:"sort_order" gorm:"not null;default:0"`
	ClosedByID      *string    `json:"closed_by_id" gorm:"size:36"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ClosedAt        *time.Time `json:"closed_at"`

	FieldTemplate  *FieldTemplate  `json:"field_template,omitempty" gorm:"foreignKey:FieldTemplateID"`
	InputInstances []InputInstance `json:"input_instances,omitempty" gorm:"foreignKey:FieldInstanceID"`
}

func (FieldInstance) TableName() string {
	return "field_instances"
}

func (f *FieldInstance) Closed() bool { return f.ClosedAt != nil }

// InputInstance holds the submitted value of one input. Dynamic inputs are
// created by a conditional action and carry its id; the pair
// (field_instance_id, triggering_conditional_action_id) is unique.
type InputInstance struct {
	ID                            string      `json:"id" gorm:"primaryKey;size:36"`
	TaskInstanceID                string      `json:"task_instance_id" gorm:"size:36;not null;index"`
	FieldInstanceID               string      `json:"field_instance_id" gorm:"size:36;not null;uniqueIndex:idx_input_field_trigger"`
	InputTemplateID               string      `json:"input_template_id" gorm:"size:36;not null;index"`
	Value                         RawJSON     `json:"value"`
	FilePaths                     StringArray `json:"file_paths"`
	IsDynamicallyCreated          bool        `json:"is_dynamically_created" gorm:"not null;default:false"`
	TriggeringConditionalActionID *string     `json:"triggering_conditional_action_id" gorm:"size:36;uniqueIndex:idx_input_field_trigger"`
	SortOrder                     int         `json:"sort_order" gorm:"not null;default:0"`
	CreatedByID                   string      `json:"created_by_id" gorm:"size:36;not null"`
	UpdatedByID                   *string     `json:"updated_by_id" gorm:"size:36"`
	Remarks                       string      `json:"remarks" gorm:"type:text"`
	CreatedAt                     time.Time   `json:"created_at"`
	UpdatedAt                     time.Time   `json:"updated_at"`
	ClosedAt                      *time.Time  `json:"closed_at"`

	InputTemplate *InputTemplate `json:"input_template,omitempty" gorm:"foreignKey:InputTemplateID"`
}

func (InputInstance) TableName() string {
	return "input_instances"
}

// TaskInstanceDropdownTemplate join
type TaskInstanceDropdownTemplate struct {
	TaskInstanceID     string `json:"task_instance_id" gorm:"primaryKey;size:36"`
	DropdownTemplateID string `json:"dropdown_template_id" gorm:"primaryKey;size:36"`
}

func (TaskInstanceDropdownTemplate) TableName() string {
	return "task_instances_dropdown_templates"
}

// FnInstanceDropdownTemplate join
type FnInstanceDropdownTemplate struct {
	FnInstanceID       string `json:"fn_instance_id" gorm:"primaryKey;size:36"`
	DropdownTemplateID string `json:"dropdown_template_id" gorm:"primaryKey;size:36"`
}

func (FnInstanceDropdownTemplate) TableName() string {
	return "fn_instances_dropdown_templates"
}

// InputInstanceDropdownTemplate join
type InputInstanceDropdownTemplate struct {
	InputInstanceID    string `json:"input_instance_id" gorm:"primaryKey;size:36"`
	DropdownTemplateID string `json:"dropdown_template_id" gorm:"primaryKey;size:36"`
}

func (InputInstanceDropdownTemplate) TableName() string {
	return "input_instances_dropdown_templates"
}

// MetadataInstance a metadata template reached by a task instance
type MetadataInstance struct {
	ID                 string    `json:"id" gorm:"primaryKey;size:36"`
	MetadataTemplateID string    `json:"metadata_template_id" gorm:"size:36;not null;uniqueIndex:idx_metadata_task,priority:2"`
	TaskInstanceID     string    `json:"task_instance_id" gorm:"size:36;not null;index;uniqueIndex:idx_metadata_task,priority:1"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	MetadataTemplate *MetadataTemplate `json:"metadata_template,omitempty" gorm:"foreignKey:MetadataTemplateID"`
}

func (MetadataInstance) TableName() string {
	return "metadata_instances"
}
