// Package roomcode implements the deterministic 6-digit share codes that can
// be used to discover a room without knowing its full id. The hash is
// many-to-one, collisions across room ids resolve to the first match in the
// store's stable board order.
package roomcode

import (
	"errors"
	"regexp"
	"strconv"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/lightspeed-board/persistence"
	"github.com/tcriess/lightspeed-board/types"
)

var ErrInvalidCode = errors.New("invalid board code format, must be 6 digits")

var codePattern = regexp.MustCompile(`^\d{6}$`)

// Code maps a room id to its 6-digit share code: sum of the character codes,
// reduced modulo 900000, plus 100000. The +100000 guarantees six digits with
// no leading zero. This must stay in sync with the client implementation.
func Code(roomId string) string {
	sum := 0
	for _, r := range roomId {
		sum += int(r)
	}
	return strconv.Itoa(sum%900000 + 100000)
}

// Lookup resolves codes to boards with a full scan of all boards, recomputing
// the code per board. An LRU cache of code->roomId keeps repeated lookups
// cheap while leaving the hash and the deterministic first-match semantics
// untouched (cache hits are re-validated against the store).
type Lookup struct {
	store persistence.Store
	cache *lru.Cache
}

func NewLookup(store persistence.Store, cacheSize int) (*Lookup, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Lookup{store: store, cache: cache}, nil
}

// FindRoomByCode returns the first board (in the store's creation order)
// whose code matches. persistence.ErrNotFound when no board matches,
// ErrInvalidCode when the code is not 6 digits.
func (l *Lookup) FindRoomByCode(code string) (*types.Board, error) {
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}
	if v, ok := l.cache.Get(code); ok {
		roomId := v.(string)
		board, err := l.store.GetBoard(roomId)
		if err == nil && Code(board.RoomId) == code {
			return board, nil
		}
		l.cache.Remove(code)
	}
	boards, err := l.store.Boards()
	if err != nil {
		return nil, err
	}
	for _, board := range boards {
		if Code(board.RoomId) == code {
			l.cache.Add(code, board.RoomId)
			// Boards() strips the operation logs; re-fetch so both the scan
			// and the cache-hit path return the full document.
			return l.store.GetBoard(board.RoomId)
		}
	}
	return nil, persistence.ErrNotFound
}
