package ws

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/types"
)

// StartResync schedules a periodic full-history push to every member of every
// active room. Live fan-out already keeps connected clients converging; this
// bounds the staleness of anything they missed (dropped frames, the
// broadcast-before-persist window of a peer that crashed). Returns the
// runner so the caller can stop it on shutdown.
func (h *Handler) StartResync(cronSpec string) (*cron.Cron, error) {
	runner := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := runner.AddFunc(cronSpec, h.resyncAll)
	if err != nil {
		return nil, err
	}
	runner.Start()
	globals.AppLogger.Info("periodic board resync scheduled", "cron", cronSpec)
	return runner, nil
}

func (h *Handler) resyncAll() {
	for _, roomId := range h.reg.RoomIds() {
		board, err := h.store.GetBoard(roomId)
		if err != nil {
			globals.AppLogger.Error("could not load board for periodic resync", "room", roomId, "error", err)
			continue
		}
		data, err := types.NewWireMessage(types.EventBoardSync, types.BoardSyncMessage{History: board.Operations})
		if err != nil {
			continue
		}
		h.reg.Broadcast(roomId, data)
	}
}
