package match

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/cbodonnell/rally/pkg/game"
	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/messages"
	"github.com/cbodonnell/rally/pkg/queue"
	"github.com/cbodonnell/rally/pkg/workers"
	"github.com/google/uuid"
)

var (
	ErrMatchFull     = errors.New("match is full")
	ErrMatchFinished = errors.New("match is finished")
)

// Conn is the transport handle bound to a player slot. Implementations
// must make Send non-blocking: a slow or closed peer must never stall
// the tick.
type Conn interface {
	Send(frame interface{}) error
	Close(code int, reason string)
	Alive() bool
}

// Phase is the lifecycle state of a match.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseReady
	PhaseCountdown
	PhasePlaying
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhaseReady:
		return "ready"
	case PhaseCountdown:
		return "countdown"
	case PhasePlaying:
		return "playing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// FinishReason records why a match entered PhaseFinished.
type FinishReason int

const (
	FinishReasonScore FinishReason = iota
	FinishReasonDisconnect
	FinishReasonAborted
)

func (r FinishReason) String() string {
	switch r {
	case FinishReasonScore:
		return "score"
	case FinishReasonDisconnect:
		return "opponent-disconnected"
	case FinishReasonAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// PracticeOpponentAlias is the name the scripted opponent plays under.
const PracticeOpponentAlias = "CPU"

const inputQueueSize = 256

type slot struct {
	conn Conn
	// bot marks the slot as occupied by the scripted opponent.
	bot bool
}

type inputEvent struct {
	player  int
	key     string
	pressed bool
}

// Match owns one game's simulation state, its two player slots, and the
// phase machine. All mutation is serialized under a single mutex; the
// tick and countdown goroutines and the session handlers all go through
// it, so a match is effectively single-writer.
type Match struct {
	ID       int64
	RecordID uuid.UUID

	mu        sync.Mutex
	phase     Phase
	slots     [2]*slot
	usernames [2]string
	geo       game.Geometry
	state     game.State
	inputs    game.Inputs
	rng       *rand.Rand

	inputQueue queue.Queue
	events     chan<- workers.MatchEvent
	onFinished func(matchID int64)

	countdown *scheduler
	ticker    *scheduler

	gameFinished  bool
	startNotified bool
	practice      bool
	winner        int
	finishReason  FinishReason
	createdAt     time.Time
	startedAt     time.Time
	finishedAt    time.Time
}

type NewMatchOptions struct {
	ID       int64
	Geometry game.Geometry
	// Events receives lifecycle events for the persistence bridge.
	Events chan<- workers.MatchEvent
	// OnFinished is called (on its own goroutine) when the match
	// reaches PhaseFinished, so the registry can drop it.
	OnFinished func(matchID int64)
	// Practice fills the second slot with a scripted opponent.
	Practice bool
	// Rand overrides the simulation RNG; nil seeds from the clock.
	Rand *rand.Rand
}

func NewMatch(opts NewMatchOptions) *Match {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m := &Match{
		ID:         opts.ID,
		RecordID:   uuid.New(),
		phase:      PhaseWaiting,
		geo:        opts.Geometry,
		state:      game.NewState(opts.Geometry),
		rng:        rng,
		inputQueue: queue.NewInMemoryQueue(inputQueueSize),
		events:     opts.Events,
		onFinished: opts.OnFinished,
		practice:   opts.Practice,
		createdAt:  time.Now(),
	}
	if opts.Practice {
		m.slots[1] = &slot{bot: true}
		m.usernames[1] = PracticeOpponentAlias
	}
	return m
}

// Join binds a connection to the first empty slot and returns the
// assigned player number (1 or 2). The joining connection receives the
// success frame; when the match fills, both slots receive ready and the
// countdown begins.
func (m *Match) Join(conn Conn, username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gameFinished {
		return 0, ErrMatchFinished
	}
	if m.slots[0] != nil && m.slots[1] != nil {
		return 0, ErrMatchFull
	}

	idx := 0
	if m.slots[0] != nil {
		idx = 1
	}
	m.slots[idx] = &slot{conn: conn}
	m.usernames[idx] = username

	if err := conn.Send(messages.NewSuccessFrame(idx+1, m.usernames[0], m.usernames[1])); err != nil {
		log.Warn("Failed to send success frame for match %d: %v", m.ID, err)
	}

	if m.slots[0] == nil || m.slots[1] == nil {
		m.broadcastLocked(messages.NewWaitingFrame(1))
		return idx + 1, nil
	}

	m.phase = PhaseReady
	m.broadcastLocked(messages.NewReadyFrame(m.usernames[0], m.usernames[1]))
	m.startCountdownLocked()

	return idx + 1, nil
}

// Rebind replaces the connection in the slot already held by username.
// Used for reconnects; the caller is responsible for checking that the
// previous connection is no longer live.
func (m *Match) Rebind(conn Conn, username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gameFinished {
		return 0, ErrMatchFinished
	}
	for idx := range m.slots {
		if m.slots[idx] != nil && !m.slots[idx].bot && m.usernames[idx] == username {
			m.slots[idx].conn = conn
			if err := conn.Send(messages.NewSuccessFrame(idx+1, m.usernames[0], m.usernames[1])); err != nil {
				log.Warn("Failed to send success frame for match %d: %v", m.ID, err)
			}
			if m.phase == PhaseWaiting {
				m.broadcastLocked(messages.NewWaitingFrame(1))
			}
			return idx + 1, nil
		}
	}

	return 0, ErrMatchFull
}

// SlotConn returns the connection currently bound to username's slot.
func (m *Match) SlotConn(username string) (Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx := range m.slots {
		if m.slots[idx] != nil && !m.slots[idx].bot && m.usernames[idx] == username {
			return m.slots[idx].conn, true
		}
	}
	return nil, false
}

// Leave clears whichever slot holds conn. A disconnect during an
// in-progress match forces the finish: the remaining player wins, or
// the match is aborted with no winner when no one is left. Calling
// Leave for a connection that holds no slot is a no-op.
func (m *Match) Leave(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i := range m.slots {
		if m.slots[i] != nil && m.slots[i].conn == conn {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	m.slots[idx] = nil

	if m.gameFinished || m.phase == PhaseWaiting {
		return
	}

	if m.practice {
		m.finishLocked(0, FinishReasonAborted)
		return
	}

	other := m.slots[1-idx]
	if other != nil {
		m.finishLocked(2-idx, FinishReasonDisconnect)
	} else {
		m.finishLocked(0, FinishReasonAborted)
	}
}

// EnqueueInput queues a key transition for the given player number. The
// input takes effect at the start of the next tick. Inputs after the
// match finished are dropped.
func (m *Match) EnqueueInput(player int, key string, pressed bool) {
	m.mu.Lock()
	finished := m.gameFinished
	m.mu.Unlock()
	if finished || player < 1 || player > 2 {
		return
	}
	m.inputQueue.Enqueue(&inputEvent{player: player, key: key, pressed: pressed})
}

// Finished reports whether the match reached its terminal phase.
func (m *Match) Finished() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gameFinished
}

// Phase returns the current lifecycle phase.
func (m *Match) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Practice reports whether this is a single-player practice match.
func (m *Match) Practice() bool {
	return m.practice
}

// PlayerCount returns the number of occupied player slots, the scripted
// opponent excluded.
func (m *Match) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.slots {
		if s != nil && !s.bot {
			count++
		}
	}
	return count
}

// Summary is a read-only snapshot for the observability API.
type Summary struct {
	ID           int64     `json:"id"`
	RecordID     uuid.UUID `json:"recordId"`
	Phase        string    `json:"phase"`
	Player1      string    `json:"player1"`
	Player2      string    `json:"player2"`
	Player1Score int       `json:"player1Score"`
	Player2Score int       `json:"player2Score"`
	Practice     bool      `json:"practice"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (m *Match) Summarize() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summary{
		ID:           m.ID,
		RecordID:     m.RecordID,
		Phase:        m.phase.String(),
		Player1:      m.usernames[0],
		Player2:      m.usernames[1],
		Player1Score: m.state.LeftScore,
		Player2Score: m.state.RightScore,
		Practice:     m.practice,
		CreatedAt:    m.createdAt,
	}
}

// broadcastLocked sends a frame to every bound connection. Sends are
// best-effort; a failed send is handled by the transport's read loop.
func (m *Match) broadcastLocked(frame interface{}) {
	for _, s := range m.slots {
		if s == nil || s.conn == nil {
			continue
		}
		if err := s.conn.Send(frame); err != nil {
			log.Trace("Failed to send frame for match %d: %v", m.ID, err)
		}
	}
}

func (m *Match) stateFrameLocked() *messages.GameStateFrame {
	return &messages.GameStateFrame{
		Type:            messages.FrameTypeGameState,
		BallX:           m.state.Ball.X,
		BallY:           m.state.Ball.Y,
		LeftPaddleY:     m.state.LeftPaddleY,
		RightPaddleY:    m.state.RightPaddleY,
		SpeedX:          m.state.Ball.VX,
		SpeedY:          m.state.Ball.VY,
		Player1Score:    m.state.LeftScore,
		Player2Score:    m.state.RightScore,
		Player1Username: m.usernames[0],
		Player2Username: m.usernames[1],
	}
}

// finishLocked drives the one-way transition into PhaseFinished: cancel
// both schedulers, broadcast the terminal frame, emit the completion
// event, and hand removal off to the registry. Safe to reach from any
// path; only the first call has effect.
func (m *Match) finishLocked(winner int, reason FinishReason) {
	if m.gameFinished {
		return
	}
	m.gameFinished = true
	m.phase = PhaseFinished
	m.winner = winner
	m.finishReason = reason
	m.finishedAt = time.Now()

	if m.countdown != nil {
		m.countdown.stop()
	}
	if m.ticker != nil {
		m.ticker.stop()
	}

	winnerAlias := ""
	if winner >= 1 && winner <= 2 {
		winnerAlias = m.usernames[winner-1]
	}

	switch reason {
	case FinishReasonScore:
		m.broadcastLocked(&messages.GameOverFrame{
			Type:            messages.FrameTypeGameOver,
			Winner:          winner,
			WinnerAlias:     winnerAlias,
			Player1Score:    m.state.LeftScore,
			Player2Score:    m.state.RightScore,
			Player1Username: m.usernames[0],
			Player2Username: m.usernames[1],
		})
	default:
		m.broadcastLocked(&messages.GameAbandonedFrame{
			Type:            messages.FrameTypeGameAbandoned,
			Winner:          winner,
			Reason:          reason.String(),
			Player1Username: m.usernames[0],
			Player2Username: m.usernames[1],
		})
	}

	for _, s := range m.slots {
		if s != nil && s.conn != nil {
			s.conn.Close(1000, "game completed")
		}
	}

	m.sendEvent(workers.MatchEvent{
		Type:         workers.MatchEventTypeCompleted,
		RecordID:     m.RecordID,
		Player1:      m.usernames[0],
		Player2:      m.usernames[1],
		WinnerAlias:  winnerAlias,
		Player1Score: m.state.LeftScore,
		Player2Score: m.state.RightScore,
		UpdateStats:  !m.practice && winner != 0,
	})

	log.Info("Match %d finished (%s), winner %d", m.ID, reason, winner)

	if m.onFinished != nil {
		go m.onFinished(m.ID)
	}
}

// sendEvent hands a lifecycle event to the persistence worker without
// ever blocking the gameplay path.
func (m *Match) sendEvent(event workers.MatchEvent) {
	if m.events == nil {
		return
	}
	select {
	case m.events <- event:
	default:
		log.Warn("Match event channel full, dropping %d event for match %d", event.Type, m.ID)
	}
}
