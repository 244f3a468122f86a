package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/folkengine/goname"
	"github.com/mitchellh/mapstructure"
	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/persistence"
	"github.com/tcriess/lightspeed-board/registry"
	"github.com/tcriess/lightspeed-board/types"
)

// Handler binds connections to rooms and implements the event contract
// between the clients and the server. Room membership goes through the
// registry, board data through the store - the handler itself is stateless
// apart from the per-client session fields it maintains.
type Handler struct {
	store persistence.Store
	reg   *registry.Registry
}

func NewHandler(store persistence.Store, reg *registry.Registry) *Handler {
	return &Handler{store: store, reg: reg}
}

func (h *Handler) Registry() *registry.Registry {
	return h.reg
}

// decodePayload unmarshals the envelope data and weakly decodes it into the
// typed payload, tolerating clients that send numbers as strings etc.
func decodePayload(data json.RawMessage, out interface{}) error {
	payload := make(map[string]interface{})
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
	}
	return mapstructure.WeakDecode(payload, out)
}

// Dispatch handles one raw websocket frame for the client. It runs in the
// client's read goroutine; events of one connection are processed in receipt
// order.
func (h *Handler) Dispatch(c *Client, raw []byte) {
	message := types.WebsocketMessage{}
	if err := json.Unmarshal(raw, &message); err != nil {
		globals.AppLogger.Error("could not unmarshal ws message", "conn", c.connId, "error", err)
		c.sendError("invalid message")
		return
	}

	switch message.Event {
	case types.EventJoinRoom:
		msg := types.JoinRoomMessage{}
		if err := decodePayload(message.Data, &msg); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.joinRoom(c, msg)

	case types.EventCheckRoomPassword:
		msg := types.CheckRoomPasswordMessage{}
		if err := decodePayload(message.Data, &msg); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.checkRoomPassword(c, msg)

	case types.EventSetRoomPassword:
		msg := types.SetRoomPasswordMessage{}
		if err := decodePayload(message.Data, &msg); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.setRoomPassword(c, msg)

	case types.EventRemoveRoomPassword:
		msg := types.RemoveRoomPasswordMessage{}
		if err := decodePayload(message.Data, &msg); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.removeRoomPassword(c, msg)

	case types.EventUserReady:
		msg := types.UserReadyMessage{}
		if err := decodePayload(message.Data, &msg); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.userReady(c, msg)

	case types.EventDrawEvent:
		op := types.Operation{}
		if err := decodePayload(message.Data, &op); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.drawEvent(c, op)

	case types.EventClearCanvas:
		h.clearCanvas(c)

	case types.EventRequestBoardSync:
		msg := types.RequestBoardSyncMessage{}
		if err := decodePayload(message.Data, &msg); err != nil {
			c.sendError("invalid message payload")
			return
		}
		h.requestBoardSync(c, msg)

	default:
		globals.AppLogger.Warn("unknown event", "event", message.Event, "conn", c.connId)
	}
}

// joinRoom attaches the connection to a room: password gate, membership,
// lazy board creation and the initial snapshot.
func (h *Handler) joinRoom(c *Client, msg types.JoinRoomMessage) {
	if msg.RoomId == "" {
		c.sendError("Error joining room")
		return
	}
	userName := msg.UserName
	if userName == "" {
		userName = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	}
	// The stable identity key: the user id when the client has one, the
	// connection id otherwise.
	identity := msg.UserId
	if identity == "" {
		identity = c.connId
	}

	board, err := h.store.GetBoard(msg.RoomId)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		// A storage failure must not block the join; treat the room as a
		// fresh, unprotected board named after its id.
		globals.AppLogger.Error("board lookup failed during join, degrading", "room", msg.RoomId, "error", err)
		board = nil
	}

	if board != nil && board.IsPasswordProtected {
		isOwner := msg.UserId != "" && board.OwnerId == msg.UserId
		authorized := h.reg.IsAuthorized(msg.RoomId, identity) || h.reg.IsAuthorized(msg.RoomId, c.connId)
		if !isOwner && !authorized && !msg.HasLocalAuth {
			if msg.Password == "" || msg.Password != board.Password {
				c.sendEvent(types.EventPasswordRequired, types.PasswordRequiredMessage{RoomId: msg.RoomId})
				return
			}
			h.reg.Authorize(msg.RoomId, identity)
		}
	}

	// A connection is a member of at most one room. Switching rooms leaves
	// the old one first, announcing the departure there.
	if c.roomId != "" && c.roomId != msg.RoomId {
		h.leaveRoom(c)
	}

	member := types.Member{
		Id:      c.connId,
		UserId:  identity,
		Name:    userName,
		Color:   types.RandomMemberColor(),
		Initial: types.MemberInitial(userName),
	}
	h.reg.AddMember(msg.RoomId, member, c)

	if board == nil {
		newBoard := &types.Board{
			RoomId:     msg.RoomId,
			Name:       msg.RoomId, // default name is the room id
			OwnerId:    identity,
			Operations: make([]types.Operation, 0),
		}
		err := h.store.CreateBoard(newBoard)
		if err != nil && !errors.Is(err, persistence.ErrConflict) {
			globals.AppLogger.Error("could not create board", "room", msg.RoomId, "error", err)
		}
		// on conflict a concurrent join won the create, its board is used below
	}

	history := make([]types.Operation, 0)
	if fresh, err := h.store.GetBoard(msg.RoomId); err == nil {
		history = fresh.Operations
	} else {
		globals.AppLogger.Error("could not load board history", "room", msg.RoomId, "error", err)
	}

	// The store calls above are suspension points: the member may have been
	// evicted by a reconnect of the same user in the meantime. If so, this
	// session lost and must not announce itself.
	if _, ok := h.reg.GetMember(msg.RoomId, c.connId); !ok {
		globals.AppLogger.Info("connection evicted during join", "room", msg.RoomId, "conn", c.connId)
		return
	}

	c.state = stateActive
	c.roomId = msg.RoomId
	c.member = member

	c.sendEvent(types.EventRoomData, types.RoomDataMessage{
		Users:   h.reg.ListMembers(msg.RoomId),
		History: history,
	})

	if data, err := types.NewWireMessage(types.EventUserJoined, member); err == nil {
		h.reg.Broadcast(msg.RoomId, data)
	}
	if data, err := types.NewWireMessage(types.EventUserCount, h.reg.MemberCount(msg.RoomId)); err == nil {
		h.reg.Broadcast(msg.RoomId, data)
	}
	globals.AppLogger.Info("user joined room", "room", msg.RoomId, "user", userName, "conn", c.connId)
}

// checkRoomPassword is a pure query: it never changes membership, but a
// correct password authorizes the connection for a later joinRoom.
func (h *Handler) checkRoomPassword(c *Client, msg types.CheckRoomPasswordMessage) {
	board, err := h.store.GetBoard(msg.RoomId)
	if err != nil {
		result := types.PasswordCheckResultMessage{Success: false, Message: "Error checking password"}
		if errors.Is(err, persistence.ErrNotFound) {
			result.Message = "Room not found"
		}
		c.sendEvent(types.EventPasswordCheckResult, result)
		return
	}
	if !board.IsPasswordProtected {
		c.sendEvent(types.EventPasswordCheckResult, types.PasswordCheckResultMessage{Success: true, Message: "No password required"})
		return
	}
	if msg.Password == board.Password {
		h.reg.Authorize(msg.RoomId, c.connId)
		c.sendEvent(types.EventPasswordCheckResult, types.PasswordCheckResultMessage{Success: true, Message: "Password correct"})
		return
	}
	c.sendEvent(types.EventPasswordCheckResult, types.PasswordCheckResultMessage{Success: false, Message: "Incorrect password"})
}

// setRoomPassword enables the password gate. This is not owner-gated on the
// server; the client only exposes the control to owners (see userReady).
func (h *Handler) setRoomPassword(c *Client, msg types.SetRoomPasswordMessage) {
	if _, err := h.store.GetBoard(msg.RoomId); err != nil {
		c.sendError("Board not found")
		return
	}
	if err := h.store.SetPasswordProtection(msg.RoomId, true, msg.Password); err != nil {
		globals.AppLogger.Error("could not set room password", "room", msg.RoomId, "error", err)
		c.sendError("Error setting password")
		return
	}
	if data, err := types.NewWireMessage(types.EventRoomPasswordUpdated, true); err == nil {
		h.reg.BroadcastExcept(msg.RoomId, c.connId, data)
	}
	globals.AppLogger.Info("password set for room", "room", msg.RoomId)
}

// removeRoomPassword disables the gate and invalidates all recorded
// authorizations for the room.
func (h *Handler) removeRoomPassword(c *Client, msg types.RemoveRoomPasswordMessage) {
	if _, err := h.store.GetBoard(msg.RoomId); err != nil {
		c.sendError("Board not found")
		return
	}
	if err := h.store.SetPasswordProtection(msg.RoomId, false, ""); err != nil {
		globals.AppLogger.Error("could not remove room password", "room", msg.RoomId, "error", err)
		c.sendError("Error removing password")
		return
	}
	h.reg.ResetAuthorization(msg.RoomId)
	if data, err := types.NewWireMessage(types.EventRoomPasswordUpdated, false); err == nil {
		h.reg.BroadcastExcept(msg.RoomId, c.connId, data)
	}
	globals.AppLogger.Info("password removed for room", "room", msg.RoomId)
}

// userReady is an advisory query after a join: it reports the protection
// status and whether the requester owns the board, so the client can decide
// which controls to show. It is not an enforcement point.
func (h *Handler) userReady(c *Client, msg types.UserReadyMessage) {
	board, err := h.store.GetBoard(msg.RoomId)
	if err != nil {
		globals.AppLogger.Error("could not load board for userReady", "room", msg.RoomId, "error", err)
		return
	}
	c.sendEvent(types.EventRoomPasswordStatus, board.IsPasswordProtected)
	isOwner := false
	if member, ok := h.reg.GetMember(msg.RoomId, c.connId); ok {
		isOwner = member.UserId != "" && board.OwnerId == member.UserId
	}
	c.sendEvent(types.EventUserRights, types.UserRightsMessage{IsOwner: isOwner})
}

// drawEvent relays one drawing operation to the other room members and
// appends it to the durable log. Broadcast happens before the append on
// purpose: perceived latency wins over durability, a crash in between loses
// the operation from the log while connected peers keep it on their canvas.
// An append failure is reported to the sender only and is not retried.
func (h *Handler) drawEvent(c *Client, op types.Operation) {
	if c.state != stateActive || c.roomId == "" {
		c.sendError("not in a room")
		return
	}
	if op.Timestamp == 0 {
		op.Timestamp = time.Now().UnixNano() / int64(time.Millisecond)
	}
	if op.Id == "" {
		if err := op.CreateId(); err != nil {
			globals.AppLogger.Error("could not hash operation", "error", err)
		}
	}
	if data, err := types.NewWireMessage(types.EventDrawEvent, op); err == nil {
		h.reg.BroadcastExcept(c.roomId, c.connId, data)
	}
	if err := h.store.AppendOperation(c.roomId, op); err != nil {
		globals.AppLogger.Error("could not save drawing event", "room", c.roomId, "error", err)
		c.sendError("Failed to save drawing event")
	}
}

// clearCanvas broadcasts the clear to the other members, then truncates the
// durable log. Same non-rollback failure policy as drawEvent.
func (h *Handler) clearCanvas(c *Client) {
	if c.state != stateActive || c.roomId == "" {
		c.sendError("not in a room")
		return
	}
	if data, err := types.NewWireMessage(types.EventClearCanvas, struct{}{}); err == nil {
		h.reg.BroadcastExcept(c.roomId, c.connId, data)
	}
	if err := h.store.ClearOperations(c.roomId); err != nil {
		globals.AppLogger.Error("could not clear board history", "room", c.roomId, "error", err)
		c.sendError("Failed to clear board")
		return
	}
	globals.AppLogger.Info("board cleared", "room", c.roomId, "by", c.member.Name)
}

// requestBoardSync re-reads the full operation log and returns it to the
// requesting connection only. The client replaces its local state with the
// replay order of the returned history. Only available once the connection
// has joined a room.
func (h *Handler) requestBoardSync(c *Client, msg types.RequestBoardSyncMessage) {
	if c.state != stateActive || c.roomId == "" {
		c.sendError("not in a room")
		return
	}
	board, err := h.store.GetBoard(msg.RoomId)
	if err != nil {
		globals.AppLogger.Error("could not load board for sync", "room", msg.RoomId, "error", err)
		c.sendError("Board not found for sync")
		return
	}
	c.sendEvent(types.EventBoardSync, types.BoardSyncMessage{History: board.Operations})
}

// leaveRoom detaches the connection from its current room and announces the
// departure to the remaining members. The persisted board is untouched.
func (h *Handler) leaveRoom(c *Client) {
	roomId := c.roomId
	if roomId == "" {
		return
	}
	c.roomId = ""
	removed, remaining := h.reg.RemoveMember(roomId, c.connId)
	if removed == nil {
		return
	}
	if data, err := types.NewWireMessage(types.EventUserLeft, types.UserLeftMessage{Id: removed.Id, Name: removed.Name}); err == nil {
		h.reg.Broadcast(roomId, data)
	}
	if data, err := types.NewWireMessage(types.EventUserCount, remaining); err == nil {
		h.reg.Broadcast(roomId, data)
	}
	globals.AppLogger.Info("user left room", "room", roomId, "user", removed.Name, "conn", c.connId)
}

// Disconnect detaches the connection from its room, announcing the departure
// to the remaining members.
func (h *Handler) Disconnect(c *Client) {
	if c.state == stateDisconnected {
		return
	}
	c.state = stateDisconnected
	h.leaveRoom(c)
}
