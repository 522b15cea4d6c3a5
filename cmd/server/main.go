// Command server runs the quadball match server: the lobby socket,
// the per-room game socket, and the supporting HTTP endpoints named
// in spec §6. Grounded on the teacher's main.go, restructured around
// flag-based configuration and graceful shutdown rather than the
// teacher's bare ListenAndServe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quadball/server/internal/config"
	"quadball/server/internal/eventlog"
	"quadball/server/internal/matchlog"
	"quadball/server/internal/qr"
	"quadball/server/internal/room"
	"quadball/server/internal/token"
	"quadball/server/internal/transport/ws"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on a clean shutdown, 1 on a
// startup failure, 2 if shutdown timed out with connections still
// draining.
func run() int {
	addr := flag.String("addr", ":8080", "bind address for the HTTP/WebSocket listener")
	dbPath := flag.String("matchlog-db", "matchlog.db", "path to the match-history sqlite database")
	publicBaseURL := flag.String("public-base-url", "http://localhost:8080", "base URL used to build room-join QR codes")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	store, err := matchlog.Open(*dbPath)
	if err != nil {
		logger.Printf("opening match log: %v", err)
		return 1
	}
	defer store.Close()

	issuer, err := token.NewIssuer()
	if err != nil {
		logger.Printf("initializing token issuer: %v", err)
		return 1
	}

	events := eventlog.NewPublisher(eventlog.NewConsoleSink(os.Stdout), eventlog.NewMemorySink())
	registry := room.NewRegistry(config.Default(), events, logger)
	registry.SetRoomCloseHook(func(r *room.Room) {
		recordMatch(r, store, logger)
	})

	mux := http.NewServeMux()
	registerRoutes(mux, registry, issuer, store, *publicBaseURL, logger)

	srv := &http.Server{Addr: *addr, Handler: mux}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("server listening on %s", *addr)
		serveErr <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			logger.Printf("listen: %v", err)
			return 1
		}
		return 0
	case <-sigCh:
		logger.Printf("shutdown requested")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown timed out: %v", err)
		return 2
	}
	return 0
}

func registerRoutes(mux *http.ServeMux, registry *room.Registry, issuer *token.Issuer, store *matchlog.Store, publicBaseURL string, logger *log.Logger) {
	lobby := ws.NewLobbyHandler(registry, issuer, logger)
	game := ws.NewGameHandler(registry, issuer, logger)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.Handle("/ws/lobby", lobby)
	mux.Handle("/ws/game/{room_id}/{player_id}", game)

	mux.HandleFunc("/rooms/{room_id}/qr", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("room_id")
		if _, ok := registry.Get(roomID); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		joinURL := fmt.Sprintf("%s/?join=%s", publicBaseURL, roomID)
		png, err := qr.JoinPNG(joinURL)
		if err != nil {
			http.Error(w, "failed to render qr code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	})

	mux.HandleFunc("/matches", func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		matches, err := store.Recent(limit)
		if err != nil {
			logger.Printf("matches: querying history: %v", err)
			http.Error(w, "failed to load match history", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(matches); err != nil {
			logger.Printf("matches: encoding response: %v", err)
		}
	})

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		summaries := registry.List()
		payload := struct {
			Status     string         `json:"status"`
			ServerTime int64          `json:"serverTime"`
			Rooms      []room.Summary `json:"rooms"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			Rooms:      summaries,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Printf("diagnostics: encoding response: %v", err)
		}
	})

	clientDir := http.Dir("client")
	mux.Handle("/", http.FileServer(clientDir))
}

// recordMatch appends a match-history row once a room tears down, if
// the game actually started. Rooms that close while still pending
// (nobody ever called start_game) have no score to record.
func recordMatch(r *room.Room, store *matchlog.Store, logger *log.Logger) {
	state := r.State()
	if state == nil {
		return
	}

	roster := r.Roster()
	players := make([]matchlog.PlayerRecord, 0, len(roster))
	for _, p := range roster {
		players = append(players, matchlog.PlayerRecord{PlayerID: p.PlayerID, Name: p.Name, Team: p.Team, Role: string(p.Role)})
	}

	duration := time.Since(r.StartedAt())
	if _, err := store.RecordMatch(r.ID(), duration, state.Score, players); err != nil {
		logger.Printf("matchlog: recording room %s: %v", r.ID(), err)
	}
}
