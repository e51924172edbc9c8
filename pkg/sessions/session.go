package sessions

import (
	"encoding/json"
	"errors"

	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/match"
	"github.com/cbodonnell/rally/pkg/messages"
	"github.com/cbodonnell/rally/pkg/registry"
)

// Close codes used when a session is terminated by the server.
const (
	CloseNormal        = 1000
	CloseProtocolError = 1002
	CloseInternalError = 1011
)

// Session binds one transport connection to one match slot for the
// connection's lifetime. It validates inbound frames, relays paddle
// input to the bound match, and unbinds on disconnect.
type Session struct {
	registry *registry.Registry
	conn     match.Conn
	username string

	match   *match.Match
	matchID int64
	player  int
}

type NewSessionOptions struct {
	Registry *registry.Registry
	Conn     match.Conn
	Username string
}

func NewSession(opts NewSessionOptions) *Session {
	return &Session{
		registry: opts.Registry,
		conn:     opts.Conn,
		username: opts.Username,
	}
}

// JoinMatch binds the session to the match with the given id. Rejected
// joins send an error frame and close the connection with code 1000.
func (s *Session) JoinMatch(matchID int64) error {
	m, player, err := s.registry.Join(matchID, s.conn, s.username)
	if err != nil {
		s.rejectJoin(err)
		return err
	}

	s.bind(m, matchID, player)
	return nil
}

// Matchmake binds the session to a match chosen by the registry: a
// reconnect, a waiting stranger's match, or a fresh one.
func (s *Session) Matchmake() error {
	result, err := s.registry.FindOrCreateForMatchmaking(s.conn, s.username)
	if err != nil {
		s.rejectJoin(err)
		return err
	}

	s.bind(result.Match, result.MatchID, result.Player)
	return nil
}

// JoinPractice binds the session to a fresh single-player match against
// the scripted opponent.
func (s *Session) JoinPractice() error {
	m, player, err := s.registry.CreatePractice(s.conn, s.username)
	if err != nil {
		s.rejectJoin(err)
		return err
	}

	s.bind(m, m.ID, player)
	return nil
}

func (s *Session) bind(m *match.Match, matchID int64, player int) {
	s.match = m
	s.matchID = matchID
	s.player = player
	log.Debug("Session %s bound to match %d as player %d", s.username, matchID, player)
}

func (s *Session) rejectJoin(err error) {
	switch {
	case errors.Is(err, match.ErrMatchFull), errors.Is(err, match.ErrMatchFinished):
		// A finished match is as unjoinable as a full one.
		s.sendError("Match is full")
		s.conn.Close(CloseNormal, "match full")
	case errors.Is(err, registry.ErrDuplicateSession):
		s.sendError("Already connected from another session")
		s.conn.Close(CloseNormal, "duplicate session")
	default:
		s.sendError("Failed to join match")
		s.conn.Close(CloseInternalError, "join failed")
	}
}

// HandleMessage processes one inbound transport message. Structurally
// broken payloads close the connection with a protocol error; frames
// that parse but fail validation get an error frame and the connection
// stays open.
func (s *Session) HandleMessage(data []byte) {
	frame := &messages.InputFrame{}
	if err := json.Unmarshal(data, frame); err != nil {
		log.Debug("Session %s sent unparseable frame: %v", s.username, err)
		s.sendError("Malformed frame")
		s.conn.Close(CloseProtocolError, "malformed frame")
		return
	}

	if frame.Type != messages.FrameTypeInput {
		// Anything but input on this channel is ignored.
		log.Trace("Session %s sent ignored frame type %q", s.username, frame.Type)
		return
	}

	if !frame.Valid() {
		s.sendError("Invalid input")
		return
	}

	if s.match == nil {
		return
	}
	s.match.EnqueueInput(s.player, frame.Key, frame.InputType == messages.InputTypeKeyDown)
}

// HandleDisconnect unbinds the session from its match. Safe to call
// more than once.
func (s *Session) HandleDisconnect() {
	if s.match == nil {
		return
	}
	s.registry.Leave(s.matchID, s.conn)
}

func (s *Session) sendError(message string) {
	if err := s.conn.Send(messages.NewErrorFrame(message)); err != nil {
		log.Trace("Failed to send error frame to %s: %v", s.username, err)
	}
}
