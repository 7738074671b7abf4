package entity

// Models every table of the task domain, in migration order
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Department{},
		&UserDepartment{},
		&Role{},
		&Permission{},
		&UserRole{},
		&ParentCompany{},
		&Customer{},
		&TaskTemplate{},
		&FnTemplate{},
		&FieldTemplate{},
		&InputTemplate{},
		&TaskTemplateFnTemplate{},
		&FnTemplateFieldTemplate{},
		&FieldTemplateInputTemplate{},
		&DropdownItem{},
		&DropdownTemplate{},
		&MetadataTemplate{},
		&ConditionalAction{},
		&ConditionalActionUser{},
		&TaskInstance{},
		&FnInstance{},
		&FieldInstance{},
		&InputInstance{},
		&TaskInstanceDropdownTemplate{},
		&FnInstanceDropdownTemplate{},
		&InputInstanceDropdownTemplate{},
		&MetadataInstance{},
	}
}
