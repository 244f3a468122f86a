package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/tcriess/lightspeed-board/config"
	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/persistence"
	"github.com/tcriess/lightspeed-board/registry"
	"github.com/tcriess/lightspeed-board/roomcode"
	"github.com/tcriess/lightspeed-board/types"
	"github.com/tcriess/lightspeed-board/ws"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
	addr       = pflag.String("addr", "localhost:8000", "service address (including port)")
	sslCert    = pflag.String("ssl-cert", "", "SSL cert (optional)")
	sslKey     = pflag.String("ssl-key", "", "SSL key (optional)")

	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

type server struct {
	store   persistence.Store
	handler *ws.Handler
	lookup  *roomcode.Lookup
}

func main() {
	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}
	if globalConfig.LogLevel != "" {
		globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
	}

	store, err := persistence.NewStore(globalConfig)
	if err != nil {
		panic(err)
	}
	defer store.Close()

	lookup, err := roomcode.NewLookup(store, globalConfig.CodeCacheSize)
	if err != nil {
		panic(err)
	}

	srv := &server{
		store:   store,
		handler: ws.NewHandler(store, registry.New()),
		lookup:  lookup,
	}

	if spec := globalConfig.ResyncConfig.CronSpec; spec != "" {
		runner, err := srv.handler.StartResync(spec)
		if err != nil {
			panic(err)
		}
		defer runner.Stop()
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		globals.AppLogger.Info("interrupted, shutting down")
		store.Close()
		os.Exit(0)
	}()

	router := mux.NewRouter()
	router.HandleFunc("/ws", srv.websocketHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/boards", srv.createBoardHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/boards", srv.listBoardsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/boards/code/{code:[0-9]+}", srv.boardByCodeHandler).Methods(http.MethodGet)

	globals.AppLogger.Info("listening", "addr", *addr)
	if *sslCert != "" && *sslKey != "" {
		err = http.ListenAndServeTLS(*addr, *sslCert, *sslKey, router)
	} else {
		err = http.ListenAndServe(*addr, router)
	}
	globals.AppLogger.Error("stopped listening", "error", err)
}

// websocketHandler upgrades the connection and runs the client pumps. The
// room binding happens later via the joinRoom event.
func (s *server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		globals.AppLogger.Error("websocket upgrade error", "error", err)
		return
	}
	client := ws.NewClient(s.handler, conn)
	globals.AppLogger.Debug("new connection", "conn", client.Id())
	go client.WriteLoop()
	client.ReadLoop()
}

type createBoardRequest struct {
	Name    string `json:"name"`
	OwnerId string `json:"ownerId"`
}

func (s *server) createBoardHandler(w http.ResponseWriter, r *http.Request) {
	req := createBoardRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OwnerId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ownerId is required"})
		return
	}
	name := req.Name
	if name == "" {
		name = "Untitled Board"
	}
	board := &types.Board{
		RoomId:     uuid.New().String(),
		Name:       name,
		OwnerId:    req.OwnerId,
		Operations: make([]types.Operation, 0),
	}
	if err := s.store.CreateBoard(board); err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "board already exists"})
			return
		}
		globals.AppLogger.Error("board creation error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Board created successfully",
		"roomId":  board.RoomId,
		"name":    board.Name,
	})
}

func (s *server) listBoardsHandler(w http.ResponseWriter, r *http.Request) {
	ownerId := r.URL.Query().Get("ownerId")
	if ownerId == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ownerId is required"})
		return
	}
	boards, err := s.store.BoardsByOwner(ownerId)
	if err != nil {
		globals.AppLogger.Error("get boards error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"boards": boards})
}

func (s *server) boardByCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	board, err := s.lookup.FindRoomByCode(code)
	if err != nil {
		switch {
		case errors.Is(err, roomcode.ErrInvalidCode):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid board code format. Must be 6 digits."})
		case errors.Is(err, persistence.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Board not found with this code"})
		default:
			globals.AppLogger.Error("error finding board by code", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"roomId": board.RoomId,
		"name":   board.Name,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
