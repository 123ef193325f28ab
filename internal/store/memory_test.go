package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "a:1", []byte("one")))
	require.NoError(t, s.Set(ctx, "a:2", []byte("two")))
	require.NoError(t, s.Set(ctx, "b:1", []byte("other")))

	val, err := s.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), val)

	// Read-after-write: an overwrite is visible immediately.
	require.NoError(t, s.Set(ctx, "a:1", []byte("uno")))
	val, err = s.Get(ctx, "a:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("uno"), val)

	values, err := s.ScanPrefix(ctx, "a:")
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("uno"), []byte("two")}, values, "scan is key ordered")

	require.NoError(t, s.Delete(ctx, "a:1"))
	require.NoError(t, s.Delete(ctx, "a:1"), "deleting an absent key is not an error")
	_, err = s.Get(ctx, "a:1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'X'

	val, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), val)

	val[0] = 'Y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryStoreHonorsContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", nil), context.Canceled)
}
