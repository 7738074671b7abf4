package entity

import (
	"time"
)

// TaskTemplate root of a workflow definition
type TaskTemplate struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (TaskTemplate) TableName() string {
	return "task_templates"
}

// FnTemplate a function (step) of a task, owned by a department
type FnTemplate struct {
	ID                       string         `json:"id" gorm:"primaryKey;size:36"`
	Name                     string         `json:"name" gorm:"size:255;not null"`
	Description              string         `json:"description" gorm:"type:text"`
	Department               DepartmentType `json:"department" gorm:"size:32;not null;default:SERVICE"`
	IsChoice                 bool           `json:"is_choice" gorm:"not null;default:false"`
	NextFollowUpFnTemplateID *string        `json:"next_follow_up_fn_template_id" gorm:"size:36"`
	Type                     FnType         `json:"type" gorm:"size:16;not null;default:NORMAL"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

func (FnTemplate) TableName() string {
	return "fn_templates"
}

// FieldTemplate a group of inputs inside a function
type FieldTemplate struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (FieldTemplate) TableName() string {
	return "field_templates"
}

// InputTemplate a single input. Condition and ComparisonValue form the
// trigger rule evaluated for every ConditionalAction sourced from it.
type InputTemplate struct {
	ID              string     `json:"id" gorm:"primaryKey;size:36"`
	Name            string     `json:"name" gorm:"size:255;not null"`
	Description     string     `json:"description" gorm:"type:text"`
	Type            InputType  `json:"type" gorm:"size:32;not null;default:TEXT"`
	Condition       *Condition `json:"condition" gorm:"size:32"`
	ComparisonValue *string    `json:"comparison_value" gorm:"size:255"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (InputTemplate) TableName() string {
	return "input_templates"
}

// TaskTemplateFnTemplate join
type TaskTemplateFnTemplate struct {
	TaskTemplateID string `json:"task_template_id" gorm:"primaryKey;size:36"`
	FnTemplateID   string `json:"fn_template_id" gorm:"primaryKey;size:36"`
	SortOrder      int    `json:"sort_order" gorm:"not null;default:0"`
}

func (TaskTemplateFnTemplate) TableName() string {
	return "task_templates_fn_templates"
}

// FnTemplateFieldTemplate join
type FnTemplateFieldTemplate struct {
	FnTemplateID    string `json:"fn_template_id" gorm:"primaryKey;size:36"`
	FieldTemplateID string `json:"field_template_id" gorm:"primaryKey;size:36"`
	SortOrder       int    `json:"sort_order" gorm:"not null;default:0"`
}

func (FnTemplateFieldTemplate) TableName() string {
	return "fn_templates_field_templates"
}

// FieldTemplateInputTemplate join
type FieldTemplateInputTemplate struct {
	FieldTemplateID string `json:"field_template_id" gorm:"primaryKey;size:36"`
	InputTemplateID string `json:"input_template_id" gorm:"primaryKey;size:36"`
	SortOrder       int    `json:"sort_order" gorm:"not null;default:0"`
}

func (FieldTemplateInputTemplate) TableName() string {
	return "field_templates_input_templates"
}

// DropdownItem reusable selection list entry
type DropdownItem struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DropdownItem) TableName() string {
	return "dropdown_items"
}

// DropdownTemplate attaches a dropdown item to a task, function or input template
type DropdownTemplate struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	DropdownItemID  string    `json:"dropdown_item_id" gorm:"size:36;not null;index"`
	TaskTemplateID  *string   `json:"task_template_id" gorm:"size:36;index"`
	FnTemplateID    *string   `json:"fn_template_id" gorm:"size:36;index"`
	InputTemplateID *string   `json:"input_template_id" gorm:"size:36;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	DropdownItem *DropdownItem `json:"dropdown_item,omitempty" gorm:"foreignKey:DropdownItemID"`
}

func (DropdownTemplate) TableName() string {
	return "dropdown_templates"
}

// MetadataTemplate marks a task, fn, field or input template as carrying
// metadata; each task instance that reaches the owner gets one MetadataInstance
type MetadataTemplate struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	TaskTemplateID  *string   `json:"task_template_id" gorm:"size:36;index"`
	FnTemplateID    *string   `json:"fn_template_id" gorm:"size:36;index"`
	FieldTemplateID *string   `json:"field_template_id" gorm:"size:36;index"`
	InputTemplateID *string   `json:"input_template_id" gorm:"size:36;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (MetadataTemplate) TableName() string {
	return "metadata_templates"
}

// TemplateGraph fully resolved task template, used by the instantiation engine
type TemplateGraph struct {
	Task      TaskTemplate       `json:"task"`
	Fns       []FnNode           `json:"fns"`
	Dropdowns []DropdownTemplate `json:"dropdowns"`
}

// FnNode function template with its resolved fields
type FnNode struct {
	Template  FnTemplate         `json:"template"`
	SortOrder int                `json:"sort_order"`
	Fields    []FieldNode        `json:"fields"`
	Dropdowns []DropdownTemplate `json:"dropdowns"`
}

// FieldNode field template with its resolved inputs
type FieldNode struct {
	Template  FieldTemplate `json:"template"`
	SortOrder int           `json:"sort_order"`
	Inputs    []InputNode   `json:"inputs"`
}

// InputNode input template with its dropdowns
type InputNode struct {
	Template  InputTemplate      `json:"template"`
	SortOrder int                `json:"sort_order"`
	Dropdowns []DropdownTemplate `json:"dropdowns"`
}
