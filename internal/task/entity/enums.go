package entity

// DepartmentType department a user belongs to
type DepartmentType string

const (
	DepartmentQuotation DepartmentType = "QUOTATION"
	DepartmentAccounts  DepartmentType = "ACCOUNTS"
	DepartmentDispatch  DepartmentType = "DISPATCH"
	DepartmentService   DepartmentType = "SERVICE"
	DepartmentCustomer  DepartmentType = "CUSTOMER"
	DepartmentWorkshop  DepartmentType = "WORKSHOP"
)

var departmentTypes = []DepartmentType{
	DepartmentQuotation, DepartmentAccounts, DepartmentDispatch,
	DepartmentService, DepartmentCustomer, DepartmentWorkshop,
}

func (d DepartmentType) Valid() bool { return contains(departmentTypes, d) }

// RoleType role inside a department
type RoleType string

const (
	RoleAdmin      RoleType = "ADMIN"
	RoleOperator   RoleType = "OPERATOR"
	RoleSales      RoleType = "SALES"
	RoleMarketing  RoleType = "MARKETING"
	RoleAccounts   RoleType = "ACCOUNTS"
	RoleDispatch   RoleType = "DISPATCH"
	RoleTechnician RoleType = "TECHNICIAN"
	RoleSurveyor   RoleType = "SURVEYOR"
	RoleMember     RoleType = "MEMBER"
)

var roleTypes = []RoleType{
	RoleAdmin, RoleOperator, RoleSales, RoleMarketing, RoleAccounts,
	RoleDispatch, RoleTechnician, RoleSurveyor, RoleMember,
}

func (r RoleType) Valid() bool { return contains(roleTypes, r) }

// PermissionType permission granted by a role
type PermissionType string

const (
	PermissionCreate PermissionType = "CREATE"
	PermissionRead   PermissionType = "READ"
	PermissionUpdate PermissionType = "UPDATE"
	PermissionDelete PermissionType = "DELETE"
	PermissionAll    PermissionType = "ALL"
)

var permissionTypes = []PermissionType{
	PermissionCreate, PermissionRead, PermissionUpdate, PermissionDelete, PermissionAll,
}

func (p PermissionType) Valid() bool { return contains(permissionTypes, p) }

// FnType function template kind
type FnType string

const (
	FnTypeNormal  FnType = "NORMAL"
	FnTypeSpecial FnType = "SPECIAL"
)

func (f FnType) Valid() bool { return f == FnTypeNormal || f == FnTypeSpecial }

// InputType input widget type, decides how a value is interpreted
type InputType string

const (
	InputFile           InputType = "FILE"
	InputMultipleFiles  InputType = "MULTIPLE_FILES"
	InputText           InputType = "TEXT"
	InputTextarea       InputType = "TEXTAREA"
	InputNumber         InputType = "NUMBER"
	InputEmail          InputType = "EMAIL"
	InputPhone          InputType = "PHONE"
	InputDropdown       InputType = "DROPDOWN"
	InputAmount         InputType = "AMOUNT"
	InputTable          InputType = "TABLE"
	InputCheckbox       InputType = "CHECKBOX"
	InputDate           InputType = "DATE"
	InputBoolean        InputType = "BOOLEAN"
	InputRichTextEditor InputType = "RICH_TEXT_EDITOR"
)

var inputTypes = []InputType{
	InputFile, InputMultipleFiles, InputText, InputTextarea, InputNumber,
	InputEmail, InputPhone, InputDropdown, InputAmount, InputTable,
	InputCheckbox, InputDate, InputBoolean, InputRichTextEditor,
}

func (t InputType) Valid() bool { return contains(inputTypes, t) }

// Condition comparison operator of an input template
type Condition string

const (
	ConditionEquals            Condition = "EQUALS"
	ConditionLessThan          Condition = "LESS_THAN"
	ConditionLessThanEquals    Condition = "LESS_THAN_EQUALS"
	ConditionGreaterThan       Condition = "GREATER_THAN"
	ConditionGreaterThanEquals Condition = "GREATER_THAN_EQUALS"
)

var conditions = []Condition{
	ConditionEquals, ConditionLessThan, ConditionLessThanEquals,
	ConditionGreaterThan, ConditionGreaterThanEquals,
}

func (c Condition) Valid() bool { return contains(conditions, c) }

// Ordering reports whether the condition needs numeric operands.
func (c Condition) Ordering() bool {
	return c.Valid() && c != ConditionEquals
}

// ActionType conditional action kind
type ActionType string

const (
	ActionMarkTaskAsDone  ActionType = "MARK_TASK_AS_DONE"
	ActionMarkFnAsDone    ActionType = "MARK_FN_AS_DONE"
	ActionMarkFieldAsDone ActionType = "MARK_FIELD_AS_DONE"
	ActionNotifyUsers     ActionType = "NOTIFY_USERS"
	ActionAddDynamicInput ActionType = "ADD_DYNAMIC_INPUT"
)

var actionTypes = []ActionType{
	ActionMarkTaskAsDone, ActionMarkFnAsDone, ActionMarkFieldAsDone,
	ActionNotifyUsers, ActionAddDynamicInput,
}

func (a ActionType) Valid() bool { return contains(actionTypes, a) }

// Priority task instance priority
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var priorities = []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool { return contains(priorities, p) }

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
