package upsert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceFloat(t *testing.T) {
	v, err := coerceFloat("total", "199.99")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 199.99, *v)

	v, err = coerceFloat("total", "  42 ")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 42.0, *v)

	v, err = coerceFloat("total", "")
	require.NoError(t, err)
	assert.Nil(t, v, "empty must coerce to nil")

	_, err = coerceFloat("total", "12,50")
	assert.Error(t, err, "locale-formatted numbers must not coerce")
}

func TestCoerceInt(t *testing.T) {
	v, err := coerceInt("year", "2019")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2019, *v)

	// Export tools commonly emit integer columns as floats.
	v, err = coerceInt("mileageIn", "12345.0")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 12345, *v)

	_, err = coerceInt("mileageIn", "12345.5")
	assert.Error(t, err, "lossy floats must not coerce to integer")

	v, err = coerceInt("year", "")
	require.NoError(t, err)
	assert.Nil(t, v, "empty must coerce to nil")
}

func TestCoerceBool(t *testing.T) {
	for _, raw := range []string{"1", "yes", "Y", "true", "TRUE"} {
		v, err := coerceBool("taxable", raw)
		require.NoError(t, err, raw)
		require.NotNil(t, v, raw)
		assert.True(t, *v, raw)
	}
	for _, raw := range []string{"0", "no", "n", "false"} {
		v, err := coerceBool("taxable", raw)
		require.NoError(t, err, raw)
		require.NotNil(t, v, raw)
		assert.False(t, *v, raw)
	}

	v, err := coerceBool("taxable", "")
	require.NoError(t, err)
	assert.Nil(t, v, "empty must coerce to nil")

	_, err = coerceBool("taxable", "maybe")
	assert.Error(t, err)
}

func TestCoerceTime(t *testing.T) {
	for raw, want := range map[string]time.Time{
		"2024-03-01T10:30:00Z": time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		"2024-03-01":           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		"2024-03-01 10:30:00":  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	} {
		v, err := coerceTime("createdOn", raw)
		require.NoError(t, err, raw)
		require.NotNil(t, v, raw)
		assert.True(t, v.Equal(want), "%q coerced to %v, want %v", raw, v, want)
	}

	v, err := coerceTime("createdOn", "")
	require.NoError(t, err)
	assert.Nil(t, v, "empty must coerce to nil")

	_, err = coerceTime("createdOn", "last tuesday")
	assert.Error(t, err)
}
