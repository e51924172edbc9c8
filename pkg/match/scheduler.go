package match

import (
	"context"
	"time"

	"github.com/cbodonnell/rally/pkg/game"
	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/messages"
	"github.com/cbodonnell/rally/pkg/workers"
)

// scheduler is a handle to one of the match's periodic goroutines.
// stop is safe to call any number of times.
type scheduler struct {
	cancel context.CancelFunc
}

func (s *scheduler) stop() {
	s.cancel()
}

// startCountdownLocked enters PhaseCountdown and launches the 1 Hz
// countdown driver. Caller holds the match lock.
func (m *Match) startCountdownLocked() {
	m.phase = PhaseCountdown
	ctx, cancel := context.WithCancel(context.Background())
	m.countdown = &scheduler{cancel: cancel}
	go m.runCountdown(ctx)
}

func (m *Match) runCountdown(ctx context.Context) {
	count := m.geo.CountdownSeconds
	m.broadcastCountdown(count)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count--
			m.broadcastCountdown(count)
			if count <= 0 {
				m.beginPlay()
				return
			}
		}
	}
}

func (m *Match) broadcastCountdown(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gameFinished {
		return
	}
	m.broadcastLocked(messages.NewCountdownFrame(count))
}

// beginPlay transitions COUNTDOWN -> PLAYING. Both slots must still be
// occupied; a player can leave mid-countdown, in which case the match
// aborts instead of playing against an empty seat.
func (m *Match) beginPlay() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gameFinished || m.phase != PhaseCountdown {
		return
	}
	if m.slots[0] == nil || m.slots[1] == nil {
		m.finishLocked(0, FinishReasonAborted)
		return
	}

	m.phase = PhasePlaying
	m.startedAt = time.Now()

	if !m.startNotified {
		m.startNotified = true
		m.sendEvent(workers.MatchEvent{
			Type:     workers.MatchEventTypeStarted,
			RecordID: m.RecordID,
			Player1:  m.usernames[0],
			Player2:  m.usernames[1],
		})
	}

	m.broadcastLocked(messages.NewGameStartFrame())

	ctx, cancel := context.WithCancel(context.Background())
	m.ticker = &scheduler{cancel: cancel}
	go m.runTicker(ctx)

	log.Info("Match %d started: %s vs %s", m.ID, m.usernames[0], m.usernames[1])
}

func (m *Match) runTicker(ctx context.Context) {
	ticker := time.NewTicker(m.geo.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.tick() {
				return
			}
		}
	}
}

// tick advances the simulation one step and broadcasts the result to
// both slots. Returns false once the match is no longer playing.
func (m *Match) tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhasePlaying {
		return false
	}

	m.drainInputsLocked()
	if m.practice {
		m.inputs.Right = m.practiceInputLocked()
	}

	next, res := game.Step(m.state, m.inputs, m.geo, m.rng)
	m.state = next

	if res.Winner != game.SideNone {
		winner := 1
		if res.Winner == game.SideRight {
			winner = 2
		}
		m.finishLocked(winner, FinishReasonScore)
		return false
	}

	m.broadcastLocked(m.stateFrameLocked())
	return true
}

func (m *Match) drainInputsLocked() {
	for _, item := range m.inputQueue.ReadAllMessages() {
		ev, ok := item.(*inputEvent)
		if !ok {
			log.Error("Failed to cast input event for match %d", m.ID)
			continue
		}
		in := &m.inputs.Left
		if ev.player == 2 {
			in = &m.inputs.Right
		}
		switch ev.key {
		case messages.InputKeyUp:
			in.Up = ev.pressed
		case messages.InputKeyDown:
			in.Down = ev.pressed
		}
	}
}
