package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/messages"
	"github.com/cbodonnell/rally/pkg/registry"
	"github.com/cbodonnell/rally/pkg/sessions"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// GameServer accepts websocket connections and hands each one to a
// session bound to a match slot.
type GameServer struct {
	port     int
	tls      *TLSConfig
	registry *registry.Registry
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewGameServerOptions struct {
	Port     int
	TLS      *TLSConfig
	Registry *registry.Registry
}

// NewGameServer creates a new websocket game server.
func NewGameServer(opts NewGameServerOptions) *GameServer {
	return &GameServer{
		port:     opts.Port,
		tls:      opts.TLS,
		registry: opts.Registry,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Start starts the game server. It blocks until the context is
// cancelled or the listener fails.
func (s *GameServer) Start(ctx context.Context) {
	router := mux.NewRouter()
	router.HandleFunc("/remote-game/{matchID}", s.handleRemoteGame)
	router.HandleFunc("/matchmaking", s.handleMatchmaking)
	router.HandleFunc("/practice-game", s.handlePracticeGame)

	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		server.Shutdown(ctx)
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("Game server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("Game server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("Game server closed")
			return
		}
		log.Error("Game server error: %v", err)
	}
}

func (s *GameServer) handleRemoteGame(w http.ResponseWriter, r *http.Request) {
	conn := s.upgrade(w, r)
	if conn == nil {
		return
	}

	matchID, err := strconv.ParseInt(mux.Vars(r)["matchID"], 10, 64)
	if err != nil || matchID <= 0 {
		conn.Send(messages.NewErrorFrame("Invalid match id"))
		conn.Close(sessions.CloseProtocolError, "invalid match id")
		return
	}

	session := s.newSession(conn, r)
	if err := session.JoinMatch(matchID); err != nil {
		return
	}
	s.readLoop(conn, session)
}

func (s *GameServer) handleMatchmaking(w http.ResponseWriter, r *http.Request) {
	conn := s.upgrade(w, r)
	if conn == nil {
		return
	}

	session := s.newSession(conn, r)
	if err := session.Matchmake(); err != nil {
		return
	}
	s.readLoop(conn, session)
}

func (s *GameServer) handlePracticeGame(w http.ResponseWriter, r *http.Request) {
	conn := s.upgrade(w, r)
	if conn == nil {
		return
	}

	session := s.newSession(conn, r)
	if err := session.JoinPractice(); err != nil {
		return
	}
	s.readLoop(conn, session)
}

func (s *GameServer) upgrade(w http.ResponseWriter, r *http.Request) *wsConn {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return nil
	}
	log.Debug("New WebSocket connection from %s", conn.RemoteAddr())
	return newWSConn(conn)
}

func (s *GameServer) newSession(conn *wsConn, r *http.Request) *sessions.Session {
	username := r.URL.Query().Get("username")
	if username == "" {
		username = "guest"
	}
	return sessions.NewSession(sessions.NewSessionOptions{
		Registry: s.registry,
		Conn:     conn,
		Username: username,
	})
}

// readLoop consumes inbound messages until the connection drops, then
// unbinds the session from its match.
func (s *GameServer) readLoop(conn *wsConn, session *sessions.Session) {
	defer func() {
		session.HandleDisconnect()
		conn.shutdown()
	}()

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error("Error reading WebSocket message from %s: %v", conn.conn.RemoteAddr(), err)
			}
			log.Trace("Connection closed for %s", conn.conn.RemoteAddr())
			return
		}
		session.HandleMessage(data)
	}
}
