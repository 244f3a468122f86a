package persistence

import (
	"errors"
	"fmt"

	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/types"
)

// Error taxonomy of the board store. Callers check with errors.Is.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists")
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is the persistence abstraction over the board documents. There is no
// paging, the full operation log is always read as a whole - both the
// join-time snapshot and the explicit resync are full-log reads.
type Store interface {
	// CreateBoard stores a new board, ErrConflict if the room id is taken.
	CreateBoard(board *types.Board) error
	// GetBoard returns the board including its full operation log in append
	// order, ErrNotFound if absent.
	GetBoard(roomId string) (*types.Board, error)
	// Boards returns all boards without their operation logs, ordered by
	// creation time, then room id. The order is the tie-break for code lookup.
	Boards() ([]*types.Board, error)
	// BoardsByOwner returns the boards created by the given owner, no logs.
	BoardsByOwner(ownerId string) ([]*types.Board, error)
	// AppendOperation appends to the board's log and bumps UpdatedAt,
	// ErrNotFound if the board is absent.
	AppendOperation(roomId string, op types.Operation) error
	// ClearOperations atomically empties the board's log.
	ClearOperations(roomId string) error
	// SetPasswordProtection enables or disables the password gate. Disabling
	// also clears the stored password.
	SetPasswordProtection(roomId string, enabled bool, password string) error
	Close() error
}

// NewStore creates the store backend selected in the configuration. An
// unconfigured backend falls back to an in-memory buntdb so the server always
// comes up.
func NewStore(cfg *config.Config) (Store, error) {
	switch cfg.PersistenceConfig.Type {
	case "buntdb":
		return NewBuntStore(cfg)
	case "sqlite", "postgres":
		return NewGormStore(cfg)
	case "":
		globals.AppLogger.Warn("no persistence configured, board data is not durable")
		return newBuntStore(":memory:")
	}
	return nil, fmt.Errorf("unknown persistence type %q", cfg.PersistenceConfig.Type)
}
