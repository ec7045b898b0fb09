// Package server ties the dice table together: it owns the room registry,
// serves the HTTP API and upgrades WebSocket connections into sessions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/dicesuki/dicesuki/server/room"
	"github.com/dicesuki/dicesuki/server/session"
)

// instanceIDLength is the length of the per-process instance id included in
// HTTP responses, used to tell server instances apart behind a balancer.
const instanceIDLength = 8

// Server is a dice table server. Use New to set one up and Listen to start
// serving.
type Server struct {
	conf       Config
	log        *slog.Logger
	instanceID string

	rooms    *room.Manager
	upgrader websocket.Upgrader

	srv       *http.Server
	closeOnce sync.Once
	done      chan struct{}
}

// New creates a Server using the Config passed. Zero values fall back to the
// defaults of DefaultConfig.
func New(conf Config) *Server {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Addr == "" {
		conf.Addr = ":8080"
	}
	if conf.CORSOrigin == "" {
		conf.CORSOrigin = "*"
	}
	if conf.CleanupInterval <= 0 {
		conf.CleanupInterval = 5 * time.Minute
	}

	srv := &Server{
		conf:       conf,
		log:        conf.Log,
		instanceID: gonanoid.Must(instanceIDLength),
		rooms:      room.NewManager(conf.Log, conf.IdleTimeout),
		done:       make(chan struct{}),
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     srv.checkOrigin,
	}
	return srv
}

// InstanceID returns the random id identifying this process.
func (srv *Server) InstanceID() string {
	return srv.instanceID
}

// Rooms returns the server's room registry.
func (srv *Server) Rooms() *room.Manager {
	return srv.rooms
}

// Handler returns the full HTTP handler of the server, with CORS and request
// logging applied.
func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", srv.handleHealth)
	mux.HandleFunc("POST /api/rooms", srv.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", srv.handleRoomInfo)
	mux.HandleFunc("GET /ws/{id}", srv.handleWS)
	mux.HandleFunc("/", srv.handleNotFound)
	return srv.withCORS(srv.withRequestLog(mux))
}

// Listen starts serving on the configured address and runs the background
// pass that reclaims idle rooms. It blocks until Close is called or the
// listener fails.
func (srv *Server) Listen() error {
	srv.srv = &http.Server{Addr: srv.conf.Addr, Handler: srv.Handler()}
	go srv.cleanupLoop()

	srv.log.Info("Server listening.", "addr", srv.conf.Addr, "instanceId", srv.instanceID)
	err := srv.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close shuts the server down, closing the listener and stopping the
// background cleanup.
func (srv *Server) Close() error {
	var err error
	srv.closeOnce.Do(func() {
		close(srv.done)
		if srv.srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = srv.srv.Shutdown(ctx)
		}
	})
	return err
}

func (srv *Server) cleanupLoop() {
	t := time.NewTicker(srv.conf.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			srv.rooms.CleanupStaleRooms()
		case <-srv.done:
			return
		}
	}
}

func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	srv.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"instanceId": srv.instanceID,
	})
}

func (srv *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id, _ := srv.rooms.CreateRoom()
	srv.writeJSON(w, http.StatusCreated, map[string]any{
		"roomId":     id,
		"instanceId": srv.instanceID,
	})
}

func (srv *Server) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rm, ok := srv.rooms.Room(id)
	if !ok {
		srv.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":      "ROOM_NOT_FOUND",
			"instanceId": srv.instanceID,
		})
		return
	}
	srv.writeJSON(w, http.StatusOK, map[string]any{
		"roomId":      rm.ID(),
		"playerCount": rm.PlayerCount(),
		"diceCount":   rm.DiceCount(),
		"instanceId":  srv.instanceID,
	})
}

func (srv *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rm, ok := srv.rooms.Room(id)
	if !ok {
		srv.log.Info("WebSocket to unknown room.", "room", id, "instanceId", srv.instanceID)
		srv.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":      "ROOM_NOT_FOUND",
			"instanceId": srv.instanceID,
		})
		return
	}

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Error("WebSocket upgrade failed.", "room", id, "err", err,
			"connection", r.Header.Get("Connection"), "upgrade", r.Header.Get("Upgrade"))
		return
	}
	session.Handle(conn, rm, srv.log)
}

func (srv *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	srv.log.Info("Unhandled request.", "method", r.Method, "path", r.URL.Path, "instanceId", srv.instanceID)
	srv.writeJSON(w, http.StatusNotFound, map[string]any{
		"error":      "Not found",
		"instanceId": srv.instanceID,
		"roomCount":  srv.rooms.RoomCount(),
	})
}

func (srv *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		srv.log.Error("Failed to write response.", "err", err)
	}
}

// checkOrigin accepts the configured CORS origin on WebSocket upgrades, or
// any origin when configured with "*". Requests without an Origin header are
// always accepted.
func (srv *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || srv.conf.CORSOrigin == "*" || origin == srv.conf.CORSOrigin
}

func (srv *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", srv.conf.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Upgrades must see the raw writer so it can be hijacked; log
		// them up front with the headers that matter for diagnosis.
		if strings.HasPrefix(r.URL.Path, "/ws/") {
			srv.log.Debug("WebSocket request.",
				"path", r.URL.Path, "instanceId", srv.instanceID,
				"connection", r.Header.Get("Connection"), "upgrade", r.Header.Get("Upgrade"))
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		srv.log.Debug("Request handled.",
			"method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration", time.Since(start), "instanceId", srv.instanceID)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}
