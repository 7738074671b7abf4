package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInputValue_Number(t *testing.T) {
	v, err := DecodeInputValue(InputNumber, []byte(`250`))
	require.NoError(t, err)
	assert.Equal(t, ValueNumber, v.Kind)
	assert.Equal(t, 250.0, v.Number)

	v, err = DecodeInputValue(InputNumber, []byte(`" 12.5 "`))
	require.NoError(t, err)
	assert.Equal(t, ValueNumber, v.Kind)
	assert.Equal(t, 12.5, v.Number)

	// non-numeric text is kept, not rejected
	v, err = DecodeInputValue(InputNumber, []byte(`"abc"`))
	require.NoError(t, err)
	assert.Equal(t, ValueText, v.Kind)
	_, ok := v.Float()
	assert.False(t, ok)
}

func TestDecodeInputValue_Null(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		v, err := DecodeInputValue(InputText, []byte(raw))
		require.NoError(t, err)
		assert.True(t, v.IsNull(), "raw %q", raw)
	}
}

func TestDecodeInputValue_Files(t *testing.T) {
	v, err := DecodeInputValue(InputMultipleFiles, []byte(`["a.pdf","b.pdf"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, v.Files)

	v, err = DecodeInputValue(InputFile, []byte(`"a.pdf"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf"}, v.Files)

	_, err = DecodeInputValue(InputFile, []byte(`["a.pdf","b.pdf"]`))
	assert.Error(t, err)
}

func TestDecodeInputValue_BooleanAndDate(t *testing.T) {
	v, err := DecodeInputValue(InputCheckbox, []byte(`"true"`))
	require.NoError(t, err)
	assert.True(t, v.Bool)

	_, err = DecodeInputValue(InputBoolean, []byte(`"maybe"`))
	assert.Error(t, err)

	v, err = DecodeInputValue(InputDate, []byte(`"2024-03-01"`))
	require.NoError(t, err)
	assert.Equal(t, ValueDate, v.Kind)

	_, err = DecodeInputValue(InputDate, []byte(`"yesterday"`))
	assert.Error(t, err)
}

func TestInputValue_JSONRoundTrip(t *testing.T) {
	raw, err := NumberValue(250).JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `250`, string(raw))

	raw, err = TextValue("abc").JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"abc"`, string(raw))

	raw, err = NullValue().JSON()
	require.NoError(t, err)
	assert.True(t, raw.IsNull())
}
