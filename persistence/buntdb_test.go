package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/types"
)

func newTestBuntStore(t *testing.T) Store {
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	store, err := NewBuntStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBuntCreateAndGetBoard(t *testing.T) {
	store := newTestBuntStore(t)
	board := &types.Board{RoomId: "room1", Name: "demo", OwnerId: "u1"}
	require.NoError(t, store.CreateBoard(board))
	assert.False(t, board.CreatedAt.IsZero())

	got, err := store.GetBoard("room1")
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)
	assert.Equal(t, "u1", got.OwnerId)
	require.NotNil(t, got.Operations)
	assert.Len(t, got.Operations, 0)
}

func TestBuntCreateBoardConflict(t *testing.T) {
	store := newTestBuntStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "room1"}))
	err := store.CreateBoard(&types.Board{RoomId: "room1"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBuntGetBoardNotFound(t *testing.T) {
	store := newTestBuntStore(t)
	_, err := store.GetBoard("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntAppendAndClearOperations(t *testing.T) {
	store := newTestBuntStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "room1"}))

	ops := []types.Operation{
		{Tool: types.ToolBrush, Timestamp: 10, StartX: 1},
		{Tool: types.ToolEraser, Timestamp: 5, StartX: 2},
		{Tool: types.ToolLine, Timestamp: 20, StartX: 3},
	}
	for _, op := range ops {
		require.NoError(t, store.AppendOperation("room1", op))
	}

	got, err := store.GetBoard("room1")
	require.NoError(t, err)
	// append order, not replay order
	require.Len(t, got.Operations, 3)
	assert.Equal(t, float64(1), got.Operations[0].StartX)
	assert.Equal(t, float64(2), got.Operations[1].StartX)
	assert.Equal(t, float64(3), got.Operations[2].StartX)

	require.NoError(t, store.ClearOperations("room1"))
	got, err = store.GetBoard("room1")
	require.NoError(t, err)
	assert.Len(t, got.Operations, 0)
}

func TestBuntAppendOperationNotFound(t *testing.T) {
	store := newTestBuntStore(t)
	err := store.AppendOperation("missing", types.Operation{Tool: types.ToolBrush})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBuntSetPasswordProtection(t *testing.T) {
	store := newTestBuntStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "room1"}))

	require.NoError(t, store.SetPasswordProtection("room1", true, "secret"))
	got, err := store.GetBoard("room1")
	require.NoError(t, err)
	assert.True(t, got.IsPasswordProtected)
	assert.Equal(t, "secret", got.Password)

	require.NoError(t, store.SetPasswordProtection("room1", false, ""))
	got, err = store.GetBoard("room1")
	require.NoError(t, err)
	assert.False(t, got.IsPasswordProtected)
	assert.Equal(t, "", got.Password)
}

func TestBuntBoardsOmitsLogsAndSorts(t *testing.T) {
	store := newTestBuntStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "b", OwnerId: "u1"}))
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "a", OwnerId: "u2"}))
	require.NoError(t, store.AppendOperation("b", types.Operation{Tool: types.ToolBrush}))

	boards, err := store.Boards()
	require.NoError(t, err)
	require.Len(t, boards, 2)
	// creation order, room id as tie-break for equal timestamps
	assert.True(t, !boards[1].CreatedAt.Before(boards[0].CreatedAt))
	for _, board := range boards {
		assert.Empty(t, board.Operations)
	}
}

func TestBuntBoardsByOwner(t *testing.T) {
	store := newTestBuntStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "a", OwnerId: "u1"}))
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "b", OwnerId: "u2"}))
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "c", OwnerId: "u1"}))

	boards, err := store.BoardsByOwner("u1")
	require.NoError(t, err)
	require.Len(t, boards, 2)
	for _, board := range boards {
		assert.Equal(t, "u1", board.OwnerId)
	}

	boards, err = store.BoardsByOwner("nobody")
	require.NoError(t, err)
	assert.Len(t, boards, 0)
}
