package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	aentity "github.com/datachef-lab/taskify-backend/internal/analytics/entity"
	"github.com/datachef-lab/taskify-backend/internal/shared/notify"
	"github.com/datachef-lab/taskify-backend/internal/task/entity"
	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	sent chan notify.Notification
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan notify.Notification, 8)}
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.sent <- msg
	return nil
}

type recordingActivities struct {
	mu   sync.Mutex
	logs []*aentity.ActivityLog
}

func (r *recordingActivities) Log(_ context.Context, a *aentity.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, a)
	return nil
}

func (r *recordingActivities) LogAsync(a *aentity.ActivityLog) {
	r.Log(context.Background(), a)
}

func (r *recordingActivities) ofType(t aentity.ActivityType) []*aentity.ActivityLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*aentity.ActivityLog
	for _, a := range r.logs {
		if a.ActivityType == t {
			out = append(out, a)
		}
	}
	return out
}

// surveyFixture Install Survey → Site Check → Measurements → Voltage with
// an Approval function beside Site Check
type surveyFixture struct {
	*engineFixture
	evaluator  *Evaluator
	notifier   *recordingNotifier
	activities *recordingActivities

	task     *entity.TaskTemplate
	site     *entity.FnTemplate
	approval *entity.FnTemplate
	field    *entity.FieldTemplate
	voltage  *entity.InputTemplate
	safety   *entity.InputTemplate
}

func newSurveyFixture(t *testing.T, comparison string) *surveyFixture {
	f := &surveyFixture{
		engineFixture: newEngineFixture(t),
		notifier:      newRecordingNotifier(),
		activities:    &recordingActivities{},
	}
	f.evaluator = NewEvaluator(f.db, f.engine, f.notifier, f.activities, nil)

	f.task = f.build.Task("Install Survey")
	f.site = f.build.Fn("Site Check")
	f.approval = f.build.Fn("Approval")
	f.field = f.build.Field("Measurements")
	f.voltage = f.build.ConditionalInput("Voltage", entity.InputNumber, entity.ConditionGreaterThan, comparison)
	f.safety = f.build.Input("Safety Notes", entity.InputText)

	f.build.AttachFn(f.task, f.site, 0)
	f.build.AttachFn(f.task, f.approval, 1)
	f.build.AttachField(f.site, f.field, 0)
	f.build.AttachInput(f.field, f.voltage, 0)
	return f
}

// voltageInput the Voltage input instance of a fresh task
func (f *surveyFixture) voltageInput(t *testing.T) (*entity.TaskInstance, *entity.InputInstance) {
	t.Helper()
	task := f.tree(t, f.instantiate(t, f.task.ID, f.customer.ID).ID)
	for _, fn := range task.FnInstances {
		for _, field := range fn.FieldInstances {
			for i := range field.InputInstances {
				if field.InputInstances[i].InputTemplateID == f.voltage.ID {
					return task, &field.InputInstances[i]
				}
			}
		}
	}
	t.Fatal("voltage input not instantiated")
	return nil, nil
}

func (f *surveyFixture) set(t *testing.T, inputID, value string) *SetValueResult {
	t.Helper()
	res, err := f.evaluator.SetInputValue(context.Background(), inputID, f.user.ID, &SetValueRequest{Value: json.RawMessage(value)})
	require.NoError(t, err)
	return res
}

func (f *surveyFixture) dynamicInputs(t *testing.T, fieldInstanceID string) []entity.InputInstance {
	t.Helper()
	inputs, err := repository.NewInstanceRepository(f.db).ListInputsOfField(context.Background(), fieldInstanceID)
	require.NoError(t, err)
	var out []entity.InputInstance
	for _, in := range inputs {
		if in.IsDynamicallyCreated {
			out = append(out, in)
		}
	}
	return out
}

func resultOf(t *testing.T, res *SetValueResult, actionID string) ActionResult {
	t.Helper()
	for _, r := range res.Results {
		if r.ActionID == actionID {
			return r
		}
	}
	t.Fatalf("no result for action %s", actionID)
	return ActionResult{}
}

func TestSetInputValue_InstallSurvey(t *testing.T) {
	f := newSurveyFixture(t, "240")
	action := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Add safety notes",
		Type:            entity.ActionAddDynamicInput,
		Target:          entity.InputTarget(f.safety.ID),
	})

	t.Run("250 adds safety notes", func(t *testing.T) {
		_, input := f.voltageInput(t)
		res := f.set(t, input.ID, "250")

		require.Len(t, res.Results, 1)
		assert.Equal(t, ActionApplied, res.Results[0].Status)
		assert.Equal(t, action.ID, res.Results[0].ActionID)

		dynamic := f.dynamicInputs(t, input.FieldInstanceID)
		require.Len(t, dynamic, 1)
		assert.Equal(t, f.safety.ID, dynamic[0].InputTemplateID)
		require.NotNil(t, dynamic[0].TriggeringConditionalActionID)
		assert.Equal(t, action.ID, *dynamic[0].TriggeringConditionalActionID)
		assert.Equal(t, 1, dynamic[0].SortOrder)
	})

	t.Run("200 adds nothing", func(t *testing.T) {
		_, input := f.voltageInput(t)
		res := f.set(t, input.ID, "200")

		require.Len(t, res.Results, 1)
		assert.Equal(t, ActionNotMet, res.Results[0].Status)
		assert.Empty(t, f.dynamicInputs(t, input.FieldInstanceID))
	})
}

func TestSetInputValue_GreaterThan(t *testing.T) {
	tests := []struct {
		value string
		want  ActionStatus
	}{
		{"15", ActionApplied},
		{"5", ActionNotMet},
		{`"abc"`, ActionNotMet},
		{`"12.5"`, ActionApplied},
		{"null", ActionNotMet},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			f := newSurveyFixture(t, "10")
			f.build.Action(entity.ConditionalActionSpec{
				InputTemplateID: f.voltage.ID,
				Name:            "Add safety notes",
				Type:            entity.ActionAddDynamicInput,
				Target:          entity.InputTarget(f.safety.ID),
			})
			_, input := f.voltageInput(t)

			res := f.set(t, input.ID, tt.value)
			require.Len(t, res.Results, 1)
			assert.Equal(t, tt.want, res.Results[0].Status)
			assert.Empty(t, res.Results[0].Error)
		})
	}
}

func TestSetInputValue_DynamicInputOnce(t *testing.T) {
	f := newSurveyFixture(t, "240")
	f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Add safety notes",
		Type:            entity.ActionAddDynamicInput,
		Target:          entity.InputTarget(f.safety.ID),
	})

	t.Run("sequential", func(t *testing.T) {
		_, input := f.voltageInput(t)
		first := f.set(t, input.ID, "250")
		second := f.set(t, input.ID, "260")

		assert.Equal(t, ActionApplied, first.Results[0].Status)
		assert.Equal(t, ActionSkipped, second.Results[0].Status)
		assert.Len(t, f.dynamicInputs(t, input.FieldInstanceID), 1)
	})

	t.Run("concurrent", func(t *testing.T) {
		_, input := f.voltageInput(t)

		const writers = 8
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.evaluator.SetInputValue(context.Background(), input.ID, f.user.ID, &SetValueRequest{Value: json.RawMessage("300")})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Len(t, f.dynamicInputs(t, input.FieldInstanceID), 1)
	})

	t.Run("lookup misses an existing row", func(t *testing.T) {
		_, input := f.voltageInput(t)
		first := f.set(t, input.ID, "250")
		require.Equal(t, ActionApplied, first.Results[0].Status)

		failures := len(f.activities.ofType(aentity.ActivityError))
		// another writer's row is invisible to the lookup; the unique index decides
		f.evaluator.findDynamic = func(*repository.InstanceRepository, context.Context, string, string) (*entity.InputInstance, error) {
			return nil, repository.ErrNotFound
		}
		defer func() { f.evaluator.findDynamic = (*repository.InstanceRepository).FindDynamicInput }()

		second := f.set(t, input.ID, "270")
		require.Len(t, second.Results, 1)
		assert.Equal(t, ActionSkipped, second.Results[0].Status)
		assert.Empty(t, second.Results[0].Error)
		assert.Len(t, f.dynamicInputs(t, input.FieldInstanceID), 1)

		stored, err := repository.NewInstanceRepository(f.db).FindInput(context.Background(), input.ID)
		require.NoError(t, err)
		assert.JSONEq(t, "270", string(stored.Value))
		assert.Len(t, f.activities.ofType(aentity.ActivityError), failures)
	})
}

func TestSetInputValue_MarkFnDoneKeepsClosedAt(t *testing.T) {
	f := newSurveyFixture(t, "240")
	f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Approve",
		Type:            entity.ActionMarkFnAsDone,
		Target:          entity.FnTarget(f.approval.ID),
	})
	task, input := f.voltageInput(t)

	first := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f.evaluator.now = func() time.Time { return first }
	res := f.set(t, input.ID, "250")
	assert.Equal(t, ActionApplied, res.Results[0].Status)

	f.evaluator.now = func() time.Time { return first.Add(2 * time.Hour) }
	res = f.set(t, input.ID, "255")
	assert.Equal(t, ActionSkipped, res.Results[0].Status)

	fn, err := repository.NewInstanceRepository(f.db).FindFnByTemplate(context.Background(), task.ID, f.approval.ID)
	require.NoError(t, err)
	require.NotNil(t, fn.ClosedAt)
	assert.WithinDuration(t, first, *fn.ClosedAt, time.Second)
	require.NotNil(t, fn.ClosedByID)
	assert.Equal(t, f.user.ID, *fn.ClosedByID)
}

func TestSetInputValue_MarkTaskDone(t *testing.T) {
	f := newSurveyFixture(t, "240")
	closeTask := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Close task",
		Type:            entity.ActionMarkTaskAsDone,
		Target:          entity.TaskTarget(f.task.ID),
	})
	closeOther := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Close other task",
		Type:            entity.ActionMarkTaskAsDone,
		Target:          entity.TaskTarget(uuid.New().String()),
	})
	task, input := f.voltageInput(t)

	res := f.set(t, input.ID, "250")
	require.Len(t, res.Results, 2)
	assert.Equal(t, ActionApplied, resultOf(t, res, closeTask.ID).Status)
	other := resultOf(t, res, closeOther.ID)
	assert.Equal(t, ActionSkipped, other.Status)
	assert.NotEmpty(t, other.Error)
	assert.Empty(t, res.Failed())

	got, err := repository.NewInstanceRepository(f.db).FindTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ClosedAt)
}

func TestSetInputValue_MarkFieldDone(t *testing.T) {
	f := newSurveyFixture(t, "240")
	f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Close measurements",
		Type:            entity.ActionMarkFieldAsDone,
		Target:          entity.FieldTarget(f.field.ID),
	})
	_, input := f.voltageInput(t)

	res := f.set(t, input.ID, "250")
	assert.Equal(t, ActionApplied, res.Results[0].Status)

	field, err := repository.NewInstanceRepository(f.db).FindField(context.Background(), input.FieldInstanceID)
	require.NoError(t, err)
	assert.True(t, field.Closed())

	_, err = f.evaluator.SetInputValue(context.Background(), input.ID, f.user.ID, &SetValueRequest{Value: json.RawMessage("1")})
	var c *ConflictError
	assert.True(t, errors.As(err, &c))
}

func TestSetInputValue_NotifyUsersAfterCommit(t *testing.T) {
	f := newSurveyFixture(t, "240")
	watcher := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "High voltage",
		Description:     "Voltage above limit",
		Type:            entity.ActionNotifyUsers,
		UserIDs:         []string{f.user.ID},
	})
	task, input := f.voltageInput(t)

	res := f.set(t, input.ID, "250")
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionApplied, res.Results[0].Status)

	select {
	case n := <-f.notifier.sent:
		assert.Equal(t, []string{f.user.ID}, n.UserIDs)
		assert.Equal(t, "High voltage", n.Title)
		assert.Equal(t, task.ID, n.EntityID)
		assert.Equal(t, watcher.ID, n.Data["action_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("notification not dispatched")
	}
}

func TestSetInputValue_ConfigurationErrorSkips(t *testing.T) {
	f := newSurveyFixture(t, "high")
	f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Add safety notes",
		Type:            entity.ActionAddDynamicInput,
		Target:          entity.InputTarget(f.safety.ID),
	})
	_, input := f.voltageInput(t)

	res := f.set(t, input.ID, "250")
	require.Len(t, res.Results, 1)
	assert.Equal(t, ActionSkipped, res.Results[0].Status)
	assert.Contains(t, res.Results[0].Error, "not numeric")

	stored, err := repository.NewInstanceRepository(f.db).FindInput(context.Background(), input.ID)
	require.NoError(t, err)
	assert.JSONEq(t, "250", string(stored.Value))
	assert.Empty(t, f.dynamicInputs(t, input.FieldInstanceID))
}

func TestSetInputValue_FailedActionRolledBackAlone(t *testing.T) {
	f := newSurveyFixture(t, "240")
	broken := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Add missing input",
		Type:            entity.ActionAddDynamicInput,
		Target:          entity.InputTarget(uuid.New().String()),
	})
	working := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Add safety notes",
		Type:            entity.ActionAddDynamicInput,
		Target:          entity.InputTarget(f.safety.ID),
	})
	_, input := f.voltageInput(t)

	res := f.set(t, input.ID, "250")
	require.Len(t, res.Results, 2)
	assert.Equal(t, ActionFailed, resultOf(t, res, broken.ID).Status)
	assert.Equal(t, ActionApplied, resultOf(t, res, working.ID).Status)
	assert.Len(t, res.Failed(), 1)

	dynamic := f.dynamicInputs(t, input.FieldInstanceID)
	require.Len(t, dynamic, 1)
	assert.Equal(t, f.safety.ID, dynamic[0].InputTemplateID)

	errorsLogged := f.activities.ofType(aentity.ActivityError)
	require.Len(t, errorsLogged, 1)
	assert.Equal(t, input.ID, errorsLogged[0].EntityID)
}

func TestSetInputValue_Conflicts(t *testing.T) {
	f := newSurveyFixture(t, "240")

	t.Run("closed input", func(t *testing.T) {
		_, input := f.voltageInput(t)
		require.NoError(t, f.db.Model(&entity.InputInstance{}).Where("id = ?", input.ID).Update("closed_at", time.Now()).Error)

		_, err := f.evaluator.SetInputValue(context.Background(), input.ID, f.user.ID, &SetValueRequest{Value: json.RawMessage("1")})
		var c *ConflictError
		assert.True(t, errors.As(err, &c))
	})

	t.Run("closed task", func(t *testing.T) {
		task, input := f.voltageInput(t)
		_, err := repository.NewInstanceRepository(f.db).CloseTask(context.Background(), task.ID, f.user.ID, time.Now())
		require.NoError(t, err)

		_, err = f.evaluator.SetInputValue(context.Background(), input.ID, f.user.ID, &SetValueRequest{Value: json.RawMessage("1")})
		var c *ConflictError
		assert.True(t, errors.As(err, &c))
	})

	t.Run("unknown input", func(t *testing.T) {
		_, err := f.evaluator.SetInputValue(context.Background(), uuid.New().String(), f.user.ID, &SetValueRequest{Value: json.RawMessage("1")})
		assert.True(t, IsNotFound(err))
	})

	t.Run("bad value", func(t *testing.T) {
		_, input := f.voltageInput(t)
		_, err := f.evaluator.SetInputValue(context.Background(), input.ID, f.user.ID, &SetValueRequest{Value: json.RawMessage("true")})
		var v *ValidationError
		assert.True(t, errors.As(err, &v))
	})
}

func TestCreateInput_DynamicPairUnique(t *testing.T) {
	f := newSurveyFixture(t, "240")
	action := f.build.Action(entity.ConditionalActionSpec{
		InputTemplateID: f.voltage.ID,
		Name:            "Add safety notes",
		Type:            entity.ActionAddDynamicInput,
		Target:          entity.InputTarget(f.safety.ID),
	})
	task, input := f.voltageInput(t)
	instances := repository.NewInstanceRepository(f.db)

	dynamic := func(actionID *string) *entity.InputInstance {
		return &entity.InputInstance{
			ID:                            uuid.New().String(),
			TaskInstanceID:                task.ID,
			FieldInstanceID:               input.FieldInstanceID,
			InputTemplateID:               f.safety.ID,
			IsDynamicallyCreated:          actionID != nil,
			TriggeringConditionalActionID: actionID,
			CreatedByID:                   f.user.ID,
		}
	}

	require.NoError(t, instances.CreateInput(context.Background(), dynamic(nil)))
	require.NoError(t, instances.CreateInput(context.Background(), dynamic(nil)), "template inputs share no trigger")
	require.NoError(t, instances.CreateInput(context.Background(), dynamic(&action.ID)))
	err := instances.CreateInput(context.Background(), dynamic(&action.ID))
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}
