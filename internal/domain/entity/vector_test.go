package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorColumnRoundTrip(t *testing.T) {
	v := Vector{0.1, -0.25, 1}
	val, err := v.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.1,-0.25,1]", val)

	var back Vector
	require.NoError(t, back.Scan([]byte("[0.1,-0.25,1]")))
	assert.Equal(t, v, back)
}

func TestVectorNullHandling(t *testing.T) {
	val, err := Vector(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, val)

	v := Vector{1}
	require.NoError(t, v.Scan(nil))
	assert.Nil(t, v)
}

func TestVectorFromFloat64(t *testing.T) {
	assert.Nil(t, VectorFromFloat64(nil))
	assert.Equal(t, Vector{0.5, -2}, VectorFromFloat64([]float64{0.5, -2}))
}
