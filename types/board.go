package types

import "time"

// Board is the persisted room document. RoomId is immutable once created,
// Operations is append-only except for a full clear. Boards are never deleted
// when a room empties, only the in-memory runtime is reclaimed.
type Board struct {
	RoomId              string      `json:"roomId" gorm:"primaryKey"`
	Name                string      `json:"name"`
	Operations          []Operation `json:"history" gorm:"-"`
	IsPasswordProtected bool        `json:"isPasswordProtected"`
	Password            string      `json:"password,omitempty"`
	OwnerId             string      `json:"createdBy"`
	CreatedAt           time.Time   `json:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt"`
}
