package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/types"
)

func newTestGormStore(t *testing.T) Store {
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{
			Type: "sqlite",
			DSN:  filepath.Join(t.TempDir(), "boards.db"),
		},
	}
	store, err := NewGormStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGormCreateAndGetBoard(t *testing.T) {
	store := newTestGormStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "room1", Name: "demo", OwnerId: "u1"}))

	err := store.CreateBoard(&types.Board{RoomId: "room1"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := store.GetBoard("room1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Len(t, got.Operations, 0)

	_, err = store.GetBoard("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormAppendPreservesOrder(t *testing.T) {
	store := newTestGormStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "room1"}))

	for i := 0; i < 5; i++ {
		op := types.Operation{Tool: types.ToolBrush, Timestamp: int64(100 - i), StartX: float64(i)}
		require.NoError(t, store.AppendOperation("room1", op))
	}

	got, err := store.GetBoard("room1")
	require.NoError(t, err)
	require.Len(t, got.Operations, 5)
	for i, op := range got.Operations {
		assert.Equal(t, float64(i), op.StartX)
	}

	require.NoError(t, store.ClearOperations("room1"))
	got, err = store.GetBoard("room1")
	require.NoError(t, err)
	assert.Len(t, got.Operations, 0)
}

func TestGormAppendOperationNotFound(t *testing.T) {
	store := newTestGormStore(t)
	err := store.AppendOperation("missing", types.Operation{Tool: types.ToolBrush})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormSetPasswordProtection(t *testing.T) {
	store := newTestGormStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "room1"}))

	require.NoError(t, store.SetPasswordProtection("room1", true, "secret"))
	got, err := store.GetBoard("room1")
	require.NoError(t, err)
	assert.True(t, got.IsPasswordProtected)
	assert.Equal(t, "secret", got.Password)

	require.NoError(t, store.SetPasswordProtection("room1", false, "ignored"))
	got, err = store.GetBoard("room1")
	require.NoError(t, err)
	assert.False(t, got.IsPasswordProtected)
	assert.Equal(t, "", got.Password)

	err = store.SetPasswordProtection("missing", true, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormBoardsByOwner(t *testing.T) {
	store := newTestGormStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "a", OwnerId: "u1"}))
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "b", OwnerId: "u2"}))

	boards, err := store.BoardsByOwner("u1")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "a", boards[0].RoomId)

	all, err := store.Boards()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
