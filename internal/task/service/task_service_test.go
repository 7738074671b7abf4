package service

import (
	"context"
	"errors"
	"testing"

	"github.com/datachef-lab/taskify-backend/internal/task/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseFieldInstance_ParentClosed(t *testing.T) {
	f := newEngineFixture(t)
	svc := NewTaskService(repository.NewRepositories(f.db), f.engine, nil, &recordingActivities{}, nil, nil)
	instances := repository.NewInstanceRepository(f.db)
	ctx := context.Background()

	task := f.build.Task("Install")
	site := f.build.Fn("Site Check")
	f.build.AttachFn(task, site, 0)
	f.build.AttachField(site, f.build.Field("Measurements"), 0)
	f.build.AttachField(site, f.build.Field("Photos"), 1)

	open := func(t *testing.T) (string, string, string) {
		t.Helper()
		tree := f.tree(t, f.instantiate(t, task.ID, f.customer.ID).ID)
		fn := tree.FnInstances[0]
		require.Len(t, fn.FieldInstances, 2)
		return tree.ID, fn.ID, fn.FieldInstances[0].ID
	}
	assertConflict := func(t *testing.T, err error) {
		t.Helper()
		var c *ConflictError
		assert.True(t, errors.As(err, &c), "want ConflictError, got %v", err)
	}

	t.Run("open parents", func(t *testing.T) {
		_, _, fieldID := open(t)
		field, err := svc.CloseFieldInstance(ctx, fieldID, f.user.ID)
		require.NoError(t, err)
		assert.True(t, field.Closed())

		again, err := svc.CloseFieldInstance(ctx, fieldID, f.user.ID)
		require.NoError(t, err)
		assert.Equal(t, field.ClosedAt.Unix(), again.ClosedAt.Unix())
	})

	t.Run("closed function", func(t *testing.T) {
		_, fnID, fieldID := open(t)
		_, err := instances.CloseFn(ctx, fnID, f.user.ID, f.engine.now())
		require.NoError(t, err)

		_, err = svc.CloseFieldInstance(ctx, fieldID, f.user.ID)
		assertConflict(t, err)
		field, err := instances.FindField(ctx, fieldID)
		require.NoError(t, err)
		assert.False(t, field.Closed())
	})

	t.Run("closed task", func(t *testing.T) {
		taskID, _, fieldID := open(t)
		_, err := instances.CloseTask(ctx, taskID, f.user.ID, f.engine.now())
		require.NoError(t, err)

		_, err = svc.CloseFieldInstance(ctx, fieldID, f.user.ID)
		assertConflict(t, err)
	})
}
