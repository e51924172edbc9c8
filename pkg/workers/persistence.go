package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/rally/pkg/log"
	"github.com/cbodonnell/rally/pkg/repositories"
	"github.com/google/uuid"
)

// MatchEventType represents the type of a match lifecycle event.
type MatchEventType int

const (
	MatchEventTypeCreated MatchEventType = iota
	MatchEventTypeStarted
	MatchEventTypeCompleted
)

// MatchEvent is a request to record a match lifecycle change. Events are
// emitted by the gameplay path and handled off the tick goroutine so a
// slow or failing store never stalls a running match.
type MatchEvent struct {
	Type         MatchEventType
	RecordID     uuid.UUID
	Player1      string
	Player2      string
	WinnerAlias  string
	Player1Score int
	Player2Score int
	// UpdateStats is false for practice matches and aborted matches.
	UpdateStats bool
}

const persistTimeout = 5 * time.Second

type PersistenceWorker struct {
	repository repositories.Repository
	events     <-chan MatchEvent
}

type NewPersistenceWorkerOptions struct {
	Repository repositories.Repository
	Events     <-chan MatchEvent
}

// NewPersistenceWorker creates a new PersistenceWorker.
// The worker consumes match lifecycle events and writes them to the
// repository. Failures are logged and never propagated to gameplay.
func NewPersistenceWorker(opts NewPersistenceWorkerOptions) *PersistenceWorker {
	return &PersistenceWorker{
		repository: opts.Repository,
		events:     opts.Events,
	}
}

func (w *PersistenceWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.events:
			w.handleEvent(ctx, event)
		}
	}
}

func (w *PersistenceWorker) handleEvent(ctx context.Context, event MatchEvent) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	switch event.Type {
	case MatchEventTypeCreated:
		if err := w.repository.CreateMatch(ctx, event.RecordID, event.Player1); err != nil {
			log.Error("Failed to record match %s creation: %v", event.RecordID, err)
		}
	case MatchEventTypeStarted:
		if err := w.repository.StartMatch(ctx, event.RecordID, event.Player1, event.Player2); err != nil {
			log.Error("Failed to record match %s start: %v", event.RecordID, err)
		}
	case MatchEventTypeCompleted:
		if err := w.repository.CompleteMatch(ctx, event.RecordID, event.WinnerAlias, event.Player1Score, event.Player2Score); err != nil {
			log.Error("Failed to record match %s completion: %v", event.RecordID, err)
		}
		if !event.UpdateStats || event.WinnerAlias == "" {
			return
		}
		loser := event.Player1
		if event.WinnerAlias == event.Player1 {
			loser = event.Player2
		}
		if err := w.repository.UpdatePlayerStats(ctx, event.WinnerAlias, true); err != nil {
			log.Error("Failed to update stats for %s: %v", event.WinnerAlias, err)
		}
		if loser != "" {
			if err := w.repository.UpdatePlayerStats(ctx, loser, false); err != nil {
				log.Error("Failed to update stats for %s: %v", loser, err)
			}
		}
	default:
		log.Error("Unhandled match event type: %d", event.Type)
	}
}
