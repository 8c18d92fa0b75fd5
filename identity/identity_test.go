package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGet(t *testing.T) {
	t.Parallel()

	c := NewCache()
	a := c.Get("user", "1")
	b := c.Get("user", "1")
	other := c.Get("user", "2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
	assert.Equal(t, "@lid:user-1", a.LID)
	assert.False(t, IsNew(a))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "user:1", a.String())
}

func TestCacheCreateLocal(t *testing.T) {
	t.Parallel()

	c := NewCache()
	a := c.CreateLocal("user")
	b := c.CreateLocal("user")

	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.LID, b.LID)
	assert.True(t, strings.HasPrefix(a.LID, "@lid:user-"))
	assert.True(t, IsNew(a))
	assert.False(t, IsNew(nil))

	found, ok := c.PeekLID(a.LID)
	require.True(t, ok)
	assert.Same(t, a, found)
}

func TestCacheSetID(t *testing.T) {
	t.Parallel()

	t.Run("keeps pointer and lid", func(t *testing.T) {
		t.Parallel()
		c := NewCache()
		a := c.CreateLocal("user")
		lid := a.LID

		require.NoError(t, c.SetID(a, "7"))
		assert.Equal(t, "7", a.ID)
		assert.Equal(t, lid, a.LID)
		assert.Same(t, a, c.Get("user", "7"))
		assert.False(t, IsNew(a))

		// same id again is a no-op
		require.NoError(t, c.SetID(a, "7"))
	})

	t.Run("rejects reassignment", func(t *testing.T) {
		t.Parallel()
		c := NewCache()
		a := c.Get("user", "1")
		assert.Error(t, c.SetID(a, "2"))
		assert.Error(t, c.SetID(c.CreateLocal("user"), ""))
	})

	t.Run("rejects id bound elsewhere", func(t *testing.T) {
		t.Parallel()
		c := NewCache()
		c.Get("user", "1")
		a := c.CreateLocal("user")
		assert.Error(t, c.SetID(a, "1"))
		assert.True(t, IsNew(a))
	})
}

func TestCacheForget(t *testing.T) {
	t.Parallel()

	c := NewCache()
	a := c.Get("user", "1")
	c.Forget(a)

	_, ok := c.Peek("user", "1")
	assert.False(t, ok)
	_, ok = c.PeekLID(a.LID)
	assert.False(t, ok)
	assert.NotSame(t, a, c.Get("user", "1"))
}
