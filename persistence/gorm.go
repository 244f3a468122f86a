package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/types"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// GormStore normalizes the board document into a boards table plus an
// append-only operations table keyed (room_id, seq). Reading all rows of a
// room in seq order preserves the append-order semantics of the document
// layout.
type GormStore struct {
	db *gorm.DB
}

type operationRow struct {
	Seq     uint           `gorm:"primaryKey;autoIncrement"`
	RoomId  string         `gorm:"index;not null"`
	Payload datatypes.JSON `gorm:"not null"`
}

func (operationRow) TableName() string { return "operations" }

func NewGormStore(cfg *config.Config) (Store, error) {
	if cfg.PersistenceConfig.DSN == "" {
		return nil, fmt.Errorf("no dsn configured for %s persistence", cfg.PersistenceConfig.Type)
	}
	var dial gorm.Dialector
	switch cfg.PersistenceConfig.Type {
	case "postgres":
		dial = postgres.Open(cfg.PersistenceConfig.DSN)

	case "sqlite":
		dial = sqlite.Open(cfg.PersistenceConfig.DSN)

	default:
		return nil, fmt.Errorf("invalid gorm configuration")
	}
	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.Migrator().AutoMigrate(&types.Board{}, &operationRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) CreateBoard(board *types.Board) error {
	now := time.Now()
	if board.CreatedAt.IsZero() {
		board.CreatedAt = now
	}
	board.UpdatedAt = now
	var count int64
	if err := s.db.Model(&types.Board{}).Where("room_id = ?", board.RoomId).Count(&count).Error; err != nil {
		return wrapGormError(err)
	}
	if count > 0 {
		return ErrConflict
	}
	return wrapGormError(s.db.Create(board).Error)
}

func (s *GormStore) GetBoard(roomId string) (*types.Board, error) {
	board := types.Board{}
	if err := s.db.First(&board, "room_id = ?", roomId).Error; err != nil {
		return nil, wrapGormError(err)
	}
	rows := make([]operationRow, 0)
	if err := s.db.Where("room_id = ?", roomId).Order("seq").Find(&rows).Error; err != nil {
		return nil, wrapGormError(err)
	}
	board.Operations = make([]types.Operation, 0, len(rows))
	for _, row := range rows {
		op := types.Operation{}
		if err := json.Unmarshal(row.Payload, &op); err != nil {
			return nil, err
		}
		board.Operations = append(board.Operations, op)
	}
	return &board, nil
}

func (s *GormStore) Boards() ([]*types.Board, error) {
	boards := make([]*types.Board, 0)
	err := s.db.Order("created_at").Order("room_id").Find(&boards).Error
	if err != nil {
		return nil, wrapGormError(err)
	}
	return boards, nil
}

func (s *GormStore) BoardsByOwner(ownerId string) ([]*types.Board, error) {
	boards := make([]*types.Board, 0)
	err := s.db.Where("owner_id = ?", ownerId).Order("created_at").Order("room_id").Find(&boards).Error
	if err != nil {
		return nil, wrapGormError(err)
	}
	return boards, nil
}

func (s *GormStore) AppendOperation(roomId string, op types.Operation) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Board{}).Where("room_id = ?", roomId).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&operationRow{RoomId: roomId, Payload: payload}).Error
	})
	return wrapGormError(err)
}

func (s *GormStore) ClearOperations(roomId string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Board{}).Where("room_id = ?", roomId).Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("room_id = ?", roomId).Delete(&operationRow{}).Error
	})
	return wrapGormError(err)
}

func (s *GormStore) SetPasswordProtection(roomId string, enabled bool, password string) error {
	if !enabled {
		password = ""
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.Board{}).Where("room_id = ?", roomId).Updates(map[string]interface{}{
			"is_password_protected": enabled,
			"password":              password,
			"updated_at":            time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return wrapGormError(err)
}

func (s *GormStore) Close() error {
	return nil
}

func wrapGormError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
