package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcriess/lightspeed-board/types"
)

type fakeSender struct {
	mu       sync.Mutex
	received [][]byte
	full     bool
}

func (s *fakeSender) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.received = append(s.received, data)
	return true
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func member(connId, userId, name string) types.Member {
	return types.Member{Id: connId, UserId: userId, Name: name}
}

func TestAddAndGetMember(t *testing.T) {
	reg := New()
	reg.AddMember("room1", member("c1", "u1", "alice"), &fakeSender{})

	m, ok := reg.GetMember("room1", "c1")
	require.True(t, ok)
	assert.Equal(t, "alice", m.Name)
	assert.Equal(t, 1, reg.MemberCount("room1"))
	assert.Equal(t, 0, reg.MemberCount("other"))
}

func TestReconnectEvictsStaleConnection(t *testing.T) {
	reg := New()
	reg.AddMember("room1", member("c1", "u1", "alice"), &fakeSender{})
	reg.AddMember("room1", member("c2", "u1", "alice"), &fakeSender{})

	assert.Equal(t, 1, reg.MemberCount("room1"))
	_, ok := reg.GetMember("room1", "c1")
	assert.False(t, ok)
	m, ok := reg.GetMember("room1", "c2")
	require.True(t, ok)
	assert.Equal(t, "u1", m.UserId)
}

// Guests have no user id, so two guest connections must coexist.
func TestGuestsAreNotEvicted(t *testing.T) {
	reg := New()
	reg.AddMember("room1", member("c1", "", "guest one"), &fakeSender{})
	reg.AddMember("room1", member("c2", "", "guest two"), &fakeSender{})

	assert.Equal(t, 2, reg.MemberCount("room1"))
}

func TestRemoveMember(t *testing.T) {
	reg := New()
	reg.AddMember("room1", member("c1", "u1", "alice"), &fakeSender{})
	reg.AddMember("room1", member("c2", "u2", "bob"), &fakeSender{})

	removed, remaining := reg.RemoveMember("room1", "c1")
	require.NotNil(t, removed)
	assert.Equal(t, "alice", removed.Name)
	assert.Equal(t, 1, remaining)

	removed, remaining = reg.RemoveMember("room1", "c1")
	assert.Nil(t, removed)
	assert.Equal(t, 1, remaining)
}

func TestEmptyRoomIsReclaimed(t *testing.T) {
	reg := New()
	reg.AddMember("room1", member("c1", "u1", "alice"), &fakeSender{})
	require.Contains(t, reg.RoomIds(), "room1")

	_, remaining := reg.RemoveMember("room1", "c1")
	assert.Equal(t, 0, remaining)
	assert.Empty(t, reg.RoomIds())
	assert.Equal(t, 0, reg.MemberCount("room1"))
}

func TestAuthorization(t *testing.T) {
	reg := New()
	assert.False(t, reg.IsAuthorized("room1", "u1"))

	reg.Authorize("room1", "u1")
	assert.True(t, reg.IsAuthorized("room1", "u1"))
	assert.False(t, reg.IsAuthorized("room1", "u2"))
	assert.False(t, reg.IsAuthorized("room2", "u1"))
	assert.False(t, reg.IsAuthorized("room1", ""))

	reg.ResetAuthorization("room1")
	assert.False(t, reg.IsAuthorized("room1", "u1"))
}

func TestBroadcast(t *testing.T) {
	reg := New()
	s1, s2, s3 := &fakeSender{}, &fakeSender{}, &fakeSender{}
	reg.AddMember("room1", member("c1", "u1", "alice"), s1)
	reg.AddMember("room1", member("c2", "u2", "bob"), s2)
	reg.AddMember("room2", member("c3", "u3", "carol"), s3)

	reg.Broadcast("room1", []byte("hello"))
	assert.Equal(t, 1, s1.count())
	assert.Equal(t, 1, s2.count())
	assert.Equal(t, 0, s3.count())

	reg.BroadcastExcept("room1", "c1", []byte("again"))
	assert.Equal(t, 1, s1.count())
	assert.Equal(t, 2, s2.count())
}

func TestBroadcastSkipsFullSender(t *testing.T) {
	reg := New()
	s1 := &fakeSender{full: true}
	s2 := &fakeSender{}
	reg.AddMember("room1", member("c1", "u1", "alice"), s1)
	reg.AddMember("room1", member("c2", "u2", "bob"), s2)

	reg.Broadcast("room1", []byte("hello"))
	assert.Equal(t, 0, s1.count())
	assert.Equal(t, 1, s2.count())
}

func TestConcurrentJoinsAndLeaves(t *testing.T) {
	reg := New()
	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connId := fmt.Sprintf("c%d", i)
			userId := fmt.Sprintf("u%d", i)
			reg.AddMember("room1", member(connId, userId, "user"), &fakeSender{})
			reg.Broadcast("room1", []byte("x"))
			if i%2 == 0 {
				reg.RemoveMember("room1", connId)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 25, reg.MemberCount("room1"))
}
