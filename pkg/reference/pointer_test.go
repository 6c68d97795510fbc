package reference_test

import (
	"testing"

	"github.com/brickingsoft/dio/pkg/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closer struct {
	closed int
}

func (c *closer) Close() error {
	c.closed++
	return nil
}

func TestPointer(t *testing.T) {
	c := &closer{}
	p := reference.Make(c)
	require.EqualValues(t, 1, p.Count())
	require.Same(t, c, p.Acquire())
	require.Same(t, c, p.Acquire())
	require.EqualValues(t, 3, p.Count())

	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
	assert.Equal(t, 0, c.closed)
	require.NoError(t, p.Release())
	assert.Equal(t, 1, c.closed)
	assert.Panics(t, func() { _ = p.Release() })
}

func TestPointer_TryAcquire(t *testing.T) {
	c := &closer{}
	p := reference.Make(c)
	v, ok := p.TryAcquire()
	require.True(t, ok)
	require.Same(t, c, v)
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
	assert.Equal(t, 1, c.closed)

	_, ok = p.TryAcquire()
	assert.False(t, ok)
	assert.EqualValues(t, 0, p.Count())
}

func TestMake_Nil(t *testing.T) {
	assert.Panics(t, func() { reference.Make[*closer](nil) })
}
