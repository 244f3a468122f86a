// Package registry owns the in-memory per-room runtime state: the live
// members of each room and the set of identities that passed the password
// gate. All membership mutation goes through the Registry so that the
// eviction-on-reconnect and empty-room reclamation invariants stay in one
// place - nothing else touches the member maps.
package registry

import (
	"sync"

	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/types"
)

// Sender is the outbound side of a connection. Send must not block; it
// reports false when the message was dropped (e.g. a full send buffer), in
// which case the connection's own write loop is responsible for the fallout.
type Sender interface {
	Send(data []byte) bool
}

type entry struct {
	member types.Member
	sender Sender
}

// runtime is the in-memory state of one room. It exists only while the room
// has members (or pending authorizations) and is independent of the persisted
// board document.
type runtime struct {
	mu         sync.Mutex
	members    map[string]*entry // by connection id
	authorized map[string]struct{}
}

// Registry maps room ids to their runtime. Mutations on the same room are
// serialized by the runtime mutex, different rooms proceed independently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*runtime
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*runtime)}
}

// ensureRuntime returns the existing runtime for the room or creates an empty
// one.
func (r *Registry) ensureRuntime(roomId string) *runtime {
	r.mu.RLock()
	rt := r.rooms[roomId]
	r.mu.RUnlock()
	if rt != nil {
		return rt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt = r.rooms[roomId]; rt == nil {
		rt = &runtime{
			members:    make(map[string]*entry),
			authorized: make(map[string]struct{}),
		}
		r.rooms[roomId] = rt
	}
	return rt
}

func (r *Registry) lookup(roomId string) *runtime {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomId]
}

// AddMember registers a member in the room. If a member with the same
// non-empty user id is already present under a different connection id, that
// stale entry is evicted first - the same logical user reconnecting replaces
// its previous connection. Eviction and insertion happen under one lock, so
// concurrent joins for the same room cannot observe two entries for one user.
func (r *Registry) AddMember(roomId string, member types.Member, sender Sender) {
	for {
		rt := r.ensureRuntime(roomId)
		rt.mu.Lock()
		if member.UserId != "" {
			for connId, e := range rt.members {
				if connId != member.Id && e.member.UserId == member.UserId {
					globals.AppLogger.Info("evicting stale connection for reconnected user",
						"room", roomId, "user", member.UserId, "stale_conn", connId)
					delete(rt.members, connId)
				}
			}
		}
		rt.members[member.Id] = &entry{member: member, sender: sender}
		rt.mu.Unlock()
		// A concurrent RemoveMember may have reclaimed this runtime before the
		// insert. In that case the insert went into an orphan, start over.
		if r.lookup(roomId) == rt {
			return
		}
	}
}

// RemoveMember removes the connection from the room and returns the evicted
// member (nil if it was not present) together with the number of members
// left. When the room empties, its runtime is dropped from the registry; the
// persisted board is untouched.
func (r *Registry) RemoveMember(roomId, connId string) (*types.Member, int) {
	rt := r.lookup(roomId)
	if rt == nil {
		return nil, 0
	}
	rt.mu.Lock()
	e, ok := rt.members[connId]
	if !ok {
		remaining := len(rt.members)
		rt.mu.Unlock()
		return nil, remaining
	}
	delete(rt.members, connId)
	remaining := len(rt.members)
	rt.mu.Unlock()

	if remaining == 0 {
		r.mu.Lock()
		// re-check under the write lock, a join may have raced us
		rt.mu.Lock()
		if len(rt.members) == 0 && r.rooms[roomId] == rt {
			delete(r.rooms, roomId)
			globals.AppLogger.Info("room is empty, removed from registry", "room", roomId)
		}
		rt.mu.Unlock()
		r.mu.Unlock()
	}
	member := e.member
	return &member, remaining
}

// Authorize records that the given user id (or connection id for guests)
// passed the password gate of the room.
func (r *Registry) Authorize(roomId, id string) {
	if id == "" {
		return
	}
	for {
		rt := r.ensureRuntime(roomId)
		rt.mu.Lock()
		rt.authorized[id] = struct{}{}
		rt.mu.Unlock()
		if r.lookup(roomId) == rt {
			return
		}
	}
}

func (r *Registry) IsAuthorized(roomId, id string) bool {
	if id == "" {
		return false
	}
	rt := r.lookup(roomId)
	if rt == nil {
		return false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	_, ok := rt.authorized[id]
	return ok
}

// ResetAuthorization drops all recorded authorizations for the room. Called
// when the password protection is removed.
func (r *Registry) ResetAuthorization(roomId string) {
	rt := r.lookup(roomId)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	rt.authorized = make(map[string]struct{})
	rt.mu.Unlock()
}

func (r *Registry) ListMembers(roomId string) []types.Member {
	rt := r.lookup(roomId)
	members := make([]types.Member, 0)
	if rt == nil {
		return members
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, e := range rt.members {
		members = append(members, e.member)
	}
	return members
}

func (r *Registry) MemberCount(roomId string) int {
	rt := r.lookup(roomId)
	if rt == nil {
		return 0
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.members)
}

// GetMember returns the member record for a connection in a room.
func (r *Registry) GetMember(roomId, connId string) (*types.Member, bool) {
	rt := r.lookup(roomId)
	if rt == nil {
		return nil, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if e, ok := rt.members[connId]; ok {
		member := e.member
		return &member, true
	}
	return nil, false
}

// RoomIds returns the ids of all rooms that currently have a runtime.
func (r *Registry) RoomIds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast sends data to every member of the room. A member whose send
// buffer is full is skipped, its write loop deals with the connection.
func (r *Registry) Broadcast(roomId string, data []byte) {
	r.BroadcastExcept(roomId, "", data)
}

// BroadcastExcept sends data to every member of the room except the given
// connection id.
func (r *Registry) BroadcastExcept(roomId, exceptConnId string, data []byte) {
	rt := r.lookup(roomId)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	receivers := make([]*entry, 0, len(rt.members))
	for connId, e := range rt.members {
		if connId == exceptConnId {
			continue
		}
		receivers = append(receivers, e)
	}
	rt.mu.Unlock()
	for _, e := range receivers {
		if !e.sender.Send(data) {
			globals.AppLogger.Warn("send buffer full, dropping broadcast for member",
				"room", roomId, "conn", e.member.Id)
		}
	}
}
