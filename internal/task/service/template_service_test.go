package service

import (
	"context"
	"errors"
	"testing"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/datachef-lab/taskify-backend/internal/task/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTemplateService(t *testing.T) (*TemplateService, *testutil.Builder) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return NewTemplateService(repos.Template, repos.ConditionalAction, repos.User), testutil.NewBuilder(t, db)
}

func strPtr(s string) *string { return &s }

func condPtr(c entity.Condition) *entity.Condition { return &c }

func assertValidation(t *testing.T, err error) {
	t.Helper()
	var v *ValidationError
	assert.True(t, errors.As(err, &v), "want ValidationError, got %v", err)
}

func TestCreateInputTemplate(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	in, err := svc.CreateInputTemplate(ctx, &InputTemplateRequest{
		Name:            " Voltage ",
		Type:            entity.InputNumber,
		Condition:       condPtr(entity.ConditionGreaterThan),
		ComparisonValue: strPtr(" 240 "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Voltage", in.Name)
	require.NotNil(t, in.ComparisonValue)
	assert.Equal(t, "240", *in.ComparisonValue)

	plain, err := svc.CreateInputTemplate(ctx, &InputTemplateRequest{Name: "Notes"})
	require.NoError(t, err)
	assert.Equal(t, entity.InputText, plain.Type)
	assert.Nil(t, plain.Condition)

	bad := []InputTemplateRequest{
		{Name: ""},
		{Name: "X", Type: "SLIDER"},
		{Name: "X", Condition: condPtr(entity.ConditionEquals)},
		{Name: "X", ComparisonValue: strPtr("1")},
		{Name: "X", Condition: condPtr(entity.ConditionLessThan), ComparisonValue: strPtr("low")},
		{Name: "X", Condition: condPtr("BETWEEN"), ComparisonValue: strPtr("1")},
	}
	for _, req := range bad {
		_, err := svc.CreateInputTemplate(ctx, &req)
		assertValidation(t, err)
	}
}

func TestFnTemplateFollowUp(t *testing.T) {
	svc, _ := newTemplateService(t)
	ctx := context.Background()

	install, err := svc.CreateFnTemplate(ctx, &FnTemplateRequest{Name: "Install"})
	require.NoError(t, err)
	assert.Equal(t, entity.DepartmentService, install.Department)
	assert.Equal(t, entity.FnTypeNormal, install.Type)

	survey, err := svc.CreateFnTemplate(ctx, &FnTemplateRequest{Name: "Survey", NextFollowUpFnTemplateID: &install.ID})
	require.NoError(t, err)
	require.NotNil(t, survey.NextFollowUpFnTemplateID)
	assert.Equal(t, install.ID, *survey.NextFollowUpFnTemplateID)

	_, err = svc.UpdateFnTemplate(ctx, survey.ID, &FnTemplateRequest{Name: "Survey", NextFollowUpFnTemplateID: &survey.ID})
	assertValidation(t, err)

	missing := uuid.New().String()
	_, err = svc.CreateFnTemplate(ctx, &FnTemplateRequest{Name: "Dangling", NextFollowUpFnTemplateID: &missing})
	assert.True(t, IsNotFound(err))

	_, err = svc.CreateFnTemplate(ctx, &FnTemplateRequest{Name: "Odd", Department: "MARKETING"})
	assertValidation(t, err)
}

func TestAttachTemplates(t *testing.T) {
	svc, b := newTemplateService(t)
	ctx := context.Background()

	task := b.Task("Install Survey")
	first := b.Fn("Site Check")
	second := b.Fn("Approval")

	link, err := svc.AttachFnTemplate(ctx, task.ID, first.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, link.SortOrder)

	link, err = svc.AttachFnTemplate(ctx, task.ID, second.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, link.SortOrder)

	_, err = svc.AttachFnTemplate(ctx, task.ID, first.ID, nil)
	var c *ConflictError
	assert.True(t, errors.As(err, &c))

	_, err = svc.AttachFnTemplate(ctx, task.ID, uuid.New().String(), nil)
	assert.True(t, IsNotFound(err))

	require.NoError(t, svc.DetachFnTemplate(ctx, task.ID, first.ID))
	assert.True(t, IsNotFound(svc.DetachFnTemplate(ctx, task.ID, first.ID)))

	order := 7
	field := b.Field("Measurements")
	fl, err := svc.AttachFieldTemplate(ctx, second.ID, field.ID, &AttachRequest{SortOrder: &order})
	require.NoError(t, err)
	assert.Equal(t, 7, fl.SortOrder)
}

func TestCreateConditionalAction(t *testing.T) {
	svc, b := newTemplateService(t)
	ctx := context.Background()

	voltage := b.ConditionalInput("Voltage", entity.InputNumber, entity.ConditionGreaterThan, "240")
	safety := b.Input("Safety Notes", entity.InputText)
	fn := b.Fn("Approval")

	action, err := svc.CreateConditionalAction(ctx, &ConditionalActionRequest{
		InputTemplateID:  voltage.ID,
		Name:             "Add safety notes",
		TargetTemplateID: safety.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ActionAddDynamicInput, action.Type)
	target, err := action.Target()
	require.NoError(t, err)
	assert.Equal(t, entity.InputTarget(safety.ID), target)

	tests := []struct {
		name  string
		req   ConditionalActionRequest
		check func(t *testing.T, err error)
	}{
		{
			name:  "target kind disagrees with type",
			req:   ConditionalActionRequest{InputTemplateID: voltage.ID, Name: "x", Type: entity.ActionMarkFnAsDone, TargetKind: entity.TargetInput, TargetTemplateID: safety.ID},
			check: assertValidation,
		},
		{
			name:  "unknown target template",
			req:   ConditionalActionRequest{InputTemplateID: voltage.ID, Name: "x", Type: entity.ActionMarkFnAsDone, TargetTemplateID: uuid.New().String()},
			check: func(t *testing.T, err error) { assert.True(t, IsNotFound(err)) },
		},
		{
			name:  "notify without users",
			req:   ConditionalActionRequest{InputTemplateID: voltage.ID, Name: "x", Type: entity.ActionNotifyUsers},
			check: assertValidation,
		},
		{
			name:  "notify unknown user",
			req:   ConditionalActionRequest{InputTemplateID: voltage.ID, Name: "x", Type: entity.ActionNotifyUsers, UserIDs: []string{uuid.New().String()}},
			check: assertValidation,
		},
		{
			name:  "missing name",
			req:   ConditionalActionRequest{InputTemplateID: voltage.ID, Type: entity.ActionMarkFnAsDone, TargetTemplateID: fn.ID},
			check: assertValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateConditionalAction(ctx, &tt.req)
			require.Error(t, err)
			tt.check(t, err)
		})
	}

	list, err := svc.ListConditionalActions(ctx, voltage.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateDropdownTemplate_SingleOwner(t *testing.T) {
	svc, b := newTemplateService(t)
	ctx := context.Background()

	item, err := svc.CreateDropdownItem(ctx, "Rooftop")
	require.NoError(t, err)
	task := b.Task("Install Survey")
	fn := b.Fn("Site Check")

	_, err = svc.CreateDropdownTemplate(ctx, &DropdownTemplateRequest{DropdownItemID: item.ID})
	assertValidation(t, err)

	_, err = svc.CreateDropdownTemplate(ctx, &DropdownTemplateRequest{DropdownItemID: item.ID, TaskTemplateID: &task.ID, FnTemplateID: &fn.ID})
	assertValidation(t, err)

	d, err := svc.CreateDropdownTemplate(ctx, &DropdownTemplateRequest{DropdownItemID: item.ID, FnTemplateID: &fn.ID})
	require.NoError(t, err)
	assert.Nil(t, d.TaskTemplateID)

	list, err := svc.ListDropdownTemplates(ctx, "fn", fn.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.ListDropdownTemplates(ctx, "customer", "")
	assertValidation(t, err)
}

func TestMetadataTemplates(t *testing.T) {
	svc, b := newTemplateService(t)
	ctx := context.Background()

	task := b.Task("Install Survey")
	field := b.Field("Measurements")

	_, err := svc.CreateMetadataTemplate(ctx, &MetadataTemplateRequest{})
	assertValidation(t, err)
	_, err = svc.CreateMetadataTemplate(ctx, &MetadataTemplateRequest{TaskTemplateID: &task.ID, FieldTemplateID: &field.ID})
	assertValidation(t, err)
	_, err = svc.CreateMetadataTemplate(ctx, &MetadataTemplateRequest{InputTemplateID: strPtr(uuid.New().String())})
	assert.True(t, IsNotFound(err), "got %v", err)

	m, err := svc.CreateMetadataTemplate(ctx, &MetadataTemplateRequest{FieldTemplateID: &field.ID, TaskTemplateID: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, m.TaskTemplateID)
	require.NotNil(t, m.FieldTemplateID)
	assert.Equal(t, field.ID, *m.FieldTemplateID)

	got, err := svc.GetMetadataTemplate(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	list, err := svc.ListMetadataTemplates(ctx, "field", field.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = svc.ListMetadataTemplates(ctx, "dropdown", "")
	assertValidation(t, err)

	require.NoError(t, svc.DeleteFieldTemplate(ctx, field.ID))
	_, err = svc.GetMetadataTemplate(ctx, m.ID)
	assert.True(t, IsNotFound(err), "owner deletion removes its metadata")

	onTask, err := svc.CreateMetadataTemplate(ctx, &MetadataTemplateRequest{TaskTemplateID: &task.ID})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteMetadataTemplate(ctx, onTask.ID))
	assert.True(t, IsNotFound(svc.DeleteMetadataTemplate(ctx, onTask.ID)))
}
