package roomcode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/persistence"
	"github.com/tcriess/lightspeed-board/types"
)

func TestCode(t *testing.T) {
	// the formula has no special cases, the empty sum maps to the floor
	assert.Equal(t, "100000", Code(""))
	assert.Regexp(t, `^\d{6}$`, Code("abc123"))
	assert.Equal(t, Code("abc123"), Code("abc123"))
	// permutations of the same characters collide
	assert.Equal(t, Code("ab"), Code("ba"))
}

func newTestStore(t *testing.T) persistence.Store {
	cfg := &config.Config{
		PersistenceConfig: config.PersistenceConfig{Type: "buntdb", DSN: ":memory:"},
	}
	store, err := persistence.NewBuntStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFindRoomByCode(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "abc123", Name: "demo", OwnerId: "u1"}))
	require.NoError(t, store.AppendOperation("abc123", types.Operation{Tool: types.ToolBrush}))

	lookup, err := NewLookup(store, 16)
	require.NoError(t, err)

	// the scan path and the cache-hit path return the same full document
	board, err := lookup.FindRoomByCode(Code("abc123"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", board.RoomId)
	assert.Equal(t, "demo", board.Name)
	assert.Len(t, board.Operations, 1)

	board, err = lookup.FindRoomByCode(Code("abc123"))
	require.NoError(t, err)
	assert.Equal(t, "abc123", board.RoomId)
	assert.Len(t, board.Operations, 1)
}

func TestFindRoomByCodeInvalid(t *testing.T) {
	lookup, err := NewLookup(newTestStore(t), 16)
	require.NoError(t, err)

	for _, code := range []string{"", "12345", "1234567", "12345a"} {
		_, err := lookup.FindRoomByCode(code)
		assert.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
}

func TestFindRoomByCodeNotFound(t *testing.T) {
	lookup, err := NewLookup(newTestStore(t), 16)
	require.NoError(t, err)

	_, err = lookup.FindRoomByCode("123456")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

// Colliding room ids resolve to the first board in creation order, no matter
// in which order the store happens to return them.
func TestFindRoomByCodeCollisionIsDeterministic(t *testing.T) {
	store := newTestStore(t)
	earlier := time.Now().Add(-time.Hour)
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "ba", Name: "second", CreatedAt: time.Now()}))
	require.NoError(t, store.CreateBoard(&types.Board{RoomId: "ab", Name: "first", CreatedAt: earlier}))

	lookup, err := NewLookup(store, 16)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		board, err := lookup.FindRoomByCode(Code("ab"))
		require.NoError(t, err)
		assert.Equal(t, "ab", board.RoomId)
	}
}
