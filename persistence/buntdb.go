package persistence

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/types"
	"github.com/tidwall/buntdb"
)

const boardKeyPrefix = "board:"

// BuntStore keeps one JSON document per board under "board:<roomId>",
// embedding the full operation log. buntdb serializes Update transactions, so
// read-modify-write appends are atomic.
type BuntStore struct {
	db *buntdb.DB
}

func NewBuntStore(cfg *config.Config) (Store, error) {
	name := cfg.PersistenceConfig.DSN
	if name == "" {
		name = ":memory:"
	}
	return newBuntStore(name)
}

func newBuntStore(name string) (Store, error) {
	db, err := buntdb.Open(name)
	if err != nil {
		return nil, err
	}
	return &BuntStore{db: db}, nil
}

func boardKey(roomId string) string {
	return boardKeyPrefix + roomId
}

func (s *BuntStore) CreateBoard(board *types.Board) error {
	now := time.Now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	board.UpdatedAt = now
	raw, err := json.Marshal(board)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Get(boardKey(board.RoomId)); err == nil {
			return ErrConflict
		} else if err != buntdb.ErrNotFound {
			return err
		}
		_, _, err := tx.Set(boardKey(board.RoomId), string(raw), nil)
		return err
	})
	return wrapBuntError(err)
}

func (s *BuntStore) GetBoard(roomId string) (*types.Board, error) {
	board := types.Board{}
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(boardKey(roomId))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &board)
	})
	if err != nil {
		return nil, wrapBuntError(err)
	}
	if board.Operations == nil {
		board.Operations = make([]types.Operation, 0)
	}
	return &board, nil
}

func (s *BuntStore) Boards() ([]*types.Board, error) {
	boards := make([]*types.Board, 0)
	err := s.db.View(func(tx *buntdb.Tx) error {
		var innerErr error
		tx.AscendKeys(boardKeyPrefix+"*", func(key, val string) bool {
			board := types.Board{}
			if err := json.Unmarshal([]byte(val), &board); err != nil {
				innerErr = err
				return false
			}
			board.Operations = nil
			boards = append(boards, &board)
			return true
		})
		return innerErr
	})
	if err != nil {
		return nil, wrapBuntError(err)
	}
	sortBoards(boards)
	return boards, nil
}

func (s *BuntStore) BoardsByOwner(ownerId string) ([]*types.Board, error) {
	all, err := s.Boards()
	if err != nil {
		return nil, err
	}
	boards := make([]*types.Board, 0)
	for _, board := range all {
		if board.OwnerId == ownerId {
			boards = append(boards, board)
		}
	}
	return boards, nil
}

// updateBoard applies fn to the stored document in a single write transaction.
func (s *BuntStore) updateBoard(roomId string, fn func(board *types.Board)) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(boardKey(roomId))
		if err != nil {
			return err
		}
		board := types.Board{}
		if err := json.Unmarshal([]byte(raw), &board); err != nil {
			return err
		}
		fn(&board)
		board.UpdatedAt = time.Now()
		out, err := json.Marshal(&board)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(boardKey(roomId), string(out), nil)
		return err
	})
	return wrapBuntError(err)
}

func (s *BuntStore) AppendOperation(roomId string, op types.Operation) error {
	return s.updateBoard(roomId, func(board *types.Board) {
		board.Operations = append(board.Operations, op)
	})
}

func (s *BuntStore) ClearOperations(roomId string) error {
	return s.updateBoard(roomId, func(board *types.Board) {
		board.Operations = make([]types.Operation, 0)
	})
}

func (s *BuntStore) SetPasswordProtection(roomId string, enabled bool, password string) error {
	return s.updateBoard(roomId, func(board *types.Board) {
		board.IsPasswordProtected = enabled
		if enabled {
			board.Password = password
		} else {
			board.Password = ""
		}
	})
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}

func sortBoards(boards []*types.Board) {
	sort.SliceStable(boards, func(i, j int) bool {
		if boards[i].CreatedAt.Equal(boards[j].CreatedAt) {
			return boards[i].RoomId < boards[j].RoomId
		}
		return boards[i].CreatedAt.Before(boards[j].CreatedAt)
	})
}

func wrapBuntError(err error) error {
	switch err {
	case nil, ErrConflict:
		return err
	case buntdb.ErrNotFound:
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
