package types

import "encoding/json"

// Event names, client to server.
const (
	EventJoinRoom           = "joinRoom"
	EventCheckRoomPassword  = "checkRoomPassword"
	EventSetRoomPassword    = "setRoomPassword"
	EventRemoveRoomPassword = "removeRoomPassword"
	EventUserReady          = "userReady"
	EventDrawEvent          = "drawEvent" // also relayed server to client
	EventClearCanvas        = "clearCanvas"
	EventRequestBoardSync   = "requestBoardSync"
)

// Event names, server to client.
const (
	EventRoomData            = "roomData"
	EventPasswordRequired    = "passwordRequired"
	EventPasswordCheckResult = "passwordCheckResult"
	EventRoomPasswordUpdated = "roomPasswordUpdated"
	EventRoomPasswordStatus  = "roomPasswordStatus"
	EventUserJoined          = "userJoined"
	EventUserLeft            = "userLeft"
	EventUserCount           = "userCount"
	EventUserRights          = "userRights"
	EventBoardSync           = "boardSync"
	EventError               = "error"
)

// JSON-serialized WebsocketMessage is what is actually sent via the Websocket
// connection.
type WebsocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewWireMessage wraps a payload in the websocket envelope and serializes it.
func NewWireMessage(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebsocketMessage{Event: event, Data: raw})
}

// The different payloads transferred from the client to here.

type JoinRoomMessage struct {
	RoomId       string `json:"roomId" mapstructure:"roomId"`
	UserName     string `json:"userName" mapstructure:"userName"`
	UserId       string `json:"userId" mapstructure:"userId"`
	Password     string `json:"password" mapstructure:"password"`
	HasLocalAuth bool   `json:"hasLocalAuth" mapstructure:"hasLocalAuth"`
}

type CheckRoomPasswordMessage struct {
	RoomId   string `json:"roomId" mapstructure:"roomId"`
	Password string `json:"password" mapstructure:"password"`
}

type SetRoomPasswordMessage struct {
	RoomId   string `json:"roomId" mapstructure:"roomId"`
	Password string `json:"password" mapstructure:"password"`
}

type RemoveRoomPasswordMessage struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

type UserReadyMessage struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

type RequestBoardSyncMessage struct {
	RoomId string `json:"roomId" mapstructure:"roomId"`
}

// The different payloads sent to the client. The history slices are the raw
// append-order log; consumers must replace their local state with the
// ReplayOrder of the slice, never merge incrementally.

type RoomDataMessage struct {
	Users   []Member    `json:"users"`
	History []Operation `json:"history"`
}

type PasswordRequiredMessage struct {
	RoomId string `json:"roomId"`
}

type PasswordCheckResultMessage struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type UserLeftMessage struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type UserRightsMessage struct {
	IsOwner bool `json:"isOwner"`
}

type BoardSyncMessage struct {
	History []Operation `json:"history"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
