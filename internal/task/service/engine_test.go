package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/datachef-lab/taskify-backend/internal/task/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type engineFixture struct {
	db       *gorm.DB
	engine   *Engine
	build    *testutil.Builder
	user     *entity.User
	customer *entity.Customer
}

func newEngineFixture(t *testing.T) *engineFixture {
	db := testutil.SetupTestDB(t)
	return &engineFixture{
		db:       db,
		engine:   NewEngine(db, nil),
		build:    testutil.NewBuilder(t, db),
		user:     testutil.SeedUser(t, db, "Asha", "asha@example.com", "secret123", false),
		customer: testutil.SeedCustomer(t, db, "Acme Solar"),
	}
}

func (f *engineFixture) instantiate(t *testing.T, taskTemplateID, customerID string) *entity.TaskInstance {
	t.Helper()
	task, err := f.engine.Instantiate(context.Background(), &InstantiateRequest{
		TaskTemplateID: taskTemplateID,
		CustomerID:     customerID,
		AssigneeID:     f.user.ID,
		CreatedByID:    f.user.ID,
	})
	require.NoError(t, err)
	return task
}

func (f *engineFixture) tree(t *testing.T, id string) *entity.TaskInstance {
	t.Helper()
	task, err := repository.NewInstanceRepository(f.db).FindTaskTree(context.Background(), id)
	require.NoError(t, err)
	return task
}

func collectIDs(task *entity.TaskInstance) []string {
	ids := []string{task.ID}
	for _, fn := range task.FnInstances {
		ids = append(ids, fn.ID)
		for _, field := range fn.FieldInstances {
			ids = append(ids, field.ID)
			for _, in := range field.InputInstances {
				ids = append(ids, in.ID)
			}
		}
	}
	return ids
}

func TestInstantiate_CopiesGraph(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Install Survey")
	fn := f.build.Fn("Site Check")
	field := f.build.Field("Measurements")
	voltage := f.build.Input("Voltage", entity.InputNumber)
	notes := f.build.Input("Notes", entity.InputText)
	f.build.AttachFn(task, fn, 0)
	f.build.AttachField(fn, field, 0)
	f.build.AttachInput(field, notes, 1)
	f.build.AttachInput(field, voltage, 0)

	created := f.instantiate(t, task.ID, f.customer.ID)

	assert.Regexp(t, regexp.MustCompile(`^T-\d{4}-\d{3}$`), created.Code)
	assert.Equal(t, entity.PriorityNormal, created.Priority)
	assert.Nil(t, created.ClosedAt)

	got := f.tree(t, created.ID)
	require.Len(t, got.FnInstances, 1)
	require.Len(t, got.FnInstances[0].FieldInstances, 1)
	inputs := got.FnInstances[0].FieldInstances[0].InputInstances
	require.Len(t, inputs, 2)
	assert.Equal(t, voltage.ID, inputs[0].InputTemplateID)
	assert.Equal(t, notes.ID, inputs[1].InputTemplateID)
	for _, in := range inputs {
		assert.False(t, in.IsDynamicallyCreated)
		assert.Equal(t, created.ID, in.TaskInstanceID)
	}
}

func TestInstantiate_SharesNoIDs(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Install Survey")
	fn := f.build.Fn("Site Check")
	field := f.build.Field("Measurements")
	f.build.AttachFn(task, fn, 0)
	f.build.AttachField(fn, field, 0)
	f.build.AttachInput(field, f.build.Input("Voltage", entity.InputNumber), 0)

	other := testutil.SeedCustomer(t, f.db, "Globex")
	a := f.tree(t, f.instantiate(t, task.ID, f.customer.ID).ID)
	b := f.tree(t, f.instantiate(t, task.ID, other.ID).ID)

	assert.NotEqual(t, a.Code, b.Code)
	seen := make(map[string]bool)
	for _, id := range collectIDs(a) {
		seen[id] = true
	}
	for _, id := range collectIDs(b) {
		assert.False(t, seen[id], "id %s shared between instances", id)
	}
}

func TestInstantiate_MissingChildIsAtomic(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Broken")
	good := f.build.Fn("Good")
	f.build.AttachFn(task, good, 0)
	f.build.AttachField(good, f.build.Field("Readings"), 0)
	// join row to a field template that was never created
	f.build.AttachField(good, &entity.FieldTemplate{ID: uuid.New().String()}, 1)

	_, err := f.engine.Instantiate(context.Background(), &InstantiateRequest{
		TaskTemplateID: task.ID,
		CustomerID:     f.customer.ID,
		AssigneeID:     f.user.ID,
		CreatedByID:    f.user.ID,
	})
	require.Error(t, err)

	var missing *MissingTemplateError
	assert.True(t, errors.As(err, &missing))
	assert.True(t, IsNotFound(err))

	for _, model := range []interface{}{&entity.TaskInstance{}, &entity.FnInstance{}, &entity.FieldInstance{}, &entity.InputInstance{}} {
		var count int64
		require.NoError(t, f.db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T persisted", model)
	}
}

func TestInstantiate_Validation(t *testing.T) {
	f := newEngineFixture(t)
	task := f.build.Task("Empty")

	tests := []struct {
		name string
		req  InstantiateRequest
		want interface{}
	}{
		{"missing customer", InstantiateRequest{TaskTemplateID: task.ID, AssigneeID: f.user.ID, CreatedByID: f.user.ID}, &ValidationError{}},
		{"bad priority", InstantiateRequest{TaskTemplateID: task.ID, CustomerID: f.customer.ID, AssigneeID: f.user.ID, CreatedByID: f.user.ID, Priority: "URGENT"}, &ValidationError{}},
		{"unknown template", InstantiateRequest{TaskTemplateID: uuid.New().String(), CustomerID: f.customer.ID, AssigneeID: f.user.ID, CreatedByID: f.user.ID}, &NotFoundError{}},
		{"unknown assignee", InstantiateRequest{TaskTemplateID: task.ID, CustomerID: f.customer.ID, AssigneeID: uuid.New().String(), CreatedByID: f.user.ID}, &NotFoundError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Instantiate(context.Background(), &tt.req)
			require.Error(t, err)
			switch tt.want.(type) {
			case *ValidationError:
				var v *ValidationError
				assert.True(t, errors.As(err, &v), "got %v", err)
			case *NotFoundError:
				assert.True(t, IsNotFound(err), "got %v", err)
			}
		})
	}
}

func TestCreateFollowUp_LazyAndOnce(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Install")
	survey := f.build.Fn("Survey")
	install := f.build.Fn("Install")
	f.build.FollowUp(survey, install)
	f.build.AttachFn(task, survey, 0)
	f.build.AttachFn(task, install, 1)
	f.build.AttachField(install, f.build.Field("Panels"), 0)

	created := f.instantiate(t, task.ID, f.customer.ID)
	got := f.tree(t, created.ID)
	require.Len(t, got.FnInstances, 1, "follow-up must not be created eagerly")
	first := got.FnInstances[0]
	assert.Equal(t, survey.ID, first.FnTemplateID)

	var followUp *entity.FnInstance
	for i := 0; i < 2; i++ {
		err := f.db.Transaction(func(tx *gorm.DB) error {
			next, err := f.engine.CreateFollowUp(context.Background(), tx, &first, "", f.user.ID)
			if i == 0 {
				followUp = next
			} else {
				assert.Nil(t, next)
			}
			return err
		})
		require.NoError(t, err)
	}

	require.NotNil(t, followUp)
	assert.Equal(t, install.ID, followUp.FnTemplateID)
	require.NotNil(t, followUp.PredecessorFnInstanceID)
	assert.Equal(t, first.ID, *followUp.PredecessorFnInstanceID)

	got = f.tree(t, created.ID)
	require.Len(t, got.FnInstances, 2)
	assert.Len(t, got.FnInstances[1].FieldInstances, 1)
}

func TestCreateFollowUp_Choice(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Inspection")
	decide := f.build.Fn("Decide")
	repair := f.build.Fn("Repair")
	replace := f.build.Fn("Replace")
	unrelated := f.build.Fn("Unrelated")
	f.build.Choice(decide)
	f.build.FollowUp(decide, repair)
	f.build.FollowUp(unrelated, replace)
	f.build.AttachFn(task, decide, 0)
	f.build.AttachFn(task, repair, 1)
	f.build.AttachFn(task, replace, 2)
	f.build.AttachFn(task, unrelated, 3)

	created := f.instantiate(t, task.ID, f.customer.ID)
	fns := f.tree(t, created.ID).FnInstances
	require.Len(t, fns, 2, "follow-up targets are held back")
	fn := fns[0]
	require.Equal(t, decide.ID, fn.FnTemplateID)

	options, err := f.engine.FollowUpOptions(context.Background(), f.db, &fn)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{repair.ID, replace.ID}, options)

	plain := fns[1]
	options, err = f.engine.FollowUpOptions(context.Background(), f.db, &plain)
	require.NoError(t, err)
	assert.Equal(t, []string{replace.ID}, options)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.engine.CreateFollowUp(context.Background(), tx, &fn, uuid.New().String(), f.user.ID)
		return err
	})
	var v *ValidationError
	assert.True(t, errors.As(err, &v))

	var next *entity.FnInstance
	err = f.db.Transaction(func(tx *gorm.DB) error {
		next, err = f.engine.CreateFollowUp(context.Background(), tx, &fn, replace.ID, f.user.ID)
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, replace.ID, next.FnTemplateID)

	count, err := repository.NewInstanceRepository(f.db).CountFnByTemplate(context.Background(), created.ID, repair.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateFollowUp_DuplicateInsertIsNoop(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Install")
	survey := f.build.Fn("Survey")
	audit := f.build.Fn("Audit")
	install := f.build.Fn("Install")
	f.build.FollowUp(survey, install)
	f.build.FollowUp(audit, install)
	f.build.AttachFn(task, survey, 0)
	f.build.AttachFn(task, audit, 1)
	f.build.AttachFn(task, install, 2)

	created := f.instantiate(t, task.ID, f.customer.ID)
	fns := f.tree(t, created.ID).FnInstances
	require.Len(t, fns, 2)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.engine.CreateFollowUp(context.Background(), tx, &fns[0], "", f.user.ID)
		return err
	})
	require.NoError(t, err)

	// a writer that counted before the first follow-up committed
	f.engine.countFns = func(*repository.InstanceRepository, context.Context, string, string) (int64, error) {
		return 0, nil
	}
	err = f.db.Transaction(func(tx *gorm.DB) error {
		next, err := f.engine.CreateFollowUp(context.Background(), tx, &fns[1], "", f.user.ID)
		if err != nil {
			return err
		}
		assert.Nil(t, next)
		// the savepoint leaves the outer transaction usable
		_, err = repository.NewInstanceRepository(tx).CountFnByTemplate(context.Background(), created.ID, install.ID)
		return err
	})
	require.NoError(t, err)

	count, err := repository.NewInstanceRepository(f.db).CountFnByTemplate(context.Background(), created.ID, install.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, f.tree(t, created.ID).FnInstances, 3)
}

func TestCreateFn_FollowUpKeyUnique(t *testing.T) {
	f := newEngineFixture(t)
	task := f.build.Task("Install")
	install := f.build.Fn("Install")
	created := f.instantiate(t, task.ID, f.customer.ID)
	instances := repository.NewInstanceRepository(f.db)

	newFn := func(key *string) *entity.FnInstance {
		return &entity.FnInstance{
			ID:             uuid.New().String(),
			TaskInstanceID: created.ID,
			FnTemplateID:   install.ID,
			FollowUpKey:    key,
			CreatedByID:    f.user.ID,
		}
	}
	lazy := entity.FollowUpKeyLazy

	require.NoError(t, instances.CreateFn(context.Background(), newFn(nil)))
	require.NoError(t, instances.CreateFn(context.Background(), newFn(nil)), "eager instances carry no key")
	require.NoError(t, instances.CreateFn(context.Background(), newFn(&lazy)))
	err := instances.CreateFn(context.Background(), newFn(&lazy))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestInstantiate_MetadataInstances(t *testing.T) {
	f := newEngineFixture(t)

	task := f.build.Task("Install")
	survey := f.build.Fn("Survey")
	install := f.build.Fn("Install")
	panels := f.build.Field("Panels")
	serial := f.build.Input("Serial", entity.InputText)
	f.build.FollowUp(survey, install)
	f.build.AttachFn(task, survey, 0)
	f.build.AttachFn(task, install, 1)
	f.build.AttachField(install, panels, 0)
	f.build.AttachInput(panels, serial, 0)

	onTask := f.build.Metadata(entity.MetadataTemplate{TaskTemplateID: &task.ID})
	onSurvey := f.build.Metadata(entity.MetadataTemplate{FnTemplateID: &survey.ID})
	onPanels := f.build.Metadata(entity.MetadataTemplate{FieldTemplateID: &panels.ID})
	onSerial := f.build.Metadata(entity.MetadataTemplate{InputTemplateID: &serial.ID})
	other := f.build.Task("Other")
	f.build.Metadata(entity.MetadataTemplate{TaskTemplateID: &other.ID})

	metadataOf := func(id string) []string {
		var ids []string
		for _, m := range f.tree(t, id).MetadataInstances {
			ids = append(ids, m.MetadataTemplateID)
		}
		return ids
	}

	created := f.instantiate(t, task.ID, f.customer.ID)
	assert.ElementsMatch(t, []string{onTask.ID, onSurvey.ID}, metadataOf(created.ID),
		"held-back follow-ups contribute nothing yet")

	first := f.tree(t, created.ID).FnInstances[0]
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.engine.CreateFollowUp(context.Background(), tx, &first, "", f.user.ID)
		return err
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{onTask.ID, onSurvey.ID, onPanels.ID, onSerial.ID}, metadataOf(created.ID))
}
