package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConditionalAction_TargetMatchesType(t *testing.T) {
	a, err := NewConditionalAction(ConditionalActionSpec{
		InputTemplateID: "in-1",
		Name:            "add safety notes",
		Type:            ActionAddDynamicInput,
		Target:          InputTarget("in-2"),
	})
	require.NoError(t, err)
	require.NotNil(t, a.TargetedInputTemplateID)
	assert.Equal(t, "in-2", *a.TargetedInputTemplateID)
	assert.Nil(t, a.TargetedFnTemplateID)

	target, err := a.Target()
	require.NoError(t, err)
	assert.Equal(t, InputTarget("in-2"), target)
}

func TestNewConditionalAction_Mismatch(t *testing.T) {
	_, err := NewConditionalAction(ConditionalActionSpec{
		InputTemplateID: "in-1",
		Name:            "close fn",
		Type:            ActionMarkFnAsDone,
		Target:          TaskTarget("task-1"),
	})
	assert.True(t, errors.Is(err, ErrTargetMismatch))

	_, err = NewConditionalAction(ConditionalActionSpec{
		InputTemplateID: "in-1",
		Name:            "notify",
		Type:            ActionNotifyUsers,
	})
	assert.True(t, errors.Is(err, ErrTargetMismatch))
}

func TestNewConditionalAction_InvalidSpec(t *testing.T) {
	_, err := NewConditionalAction(ConditionalActionSpec{
		InputTemplateID: "in-1",
		Name:            "bad",
		Type:            ActionType("EXPLODE"),
	})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTargetMismatch))
}

func TestConditionalAction_TargetRejectsStoredMismatch(t *testing.T) {
	fn := "fn-1"
	input := "in-9"
	a := &ConditionalAction{Type: ActionMarkFieldAsDone, TargetedFnTemplateID: &fn}
	_, err := a.Target()
	assert.True(t, errors.Is(err, ErrTargetMismatch))

	a = &ConditionalAction{Type: ActionMarkFnAsDone, TargetedFnTemplateID: &fn, TargetedInputTemplateID: &input}
	_, err = a.Target()
	assert.True(t, errors.Is(err, ErrTargetMismatch))
}
