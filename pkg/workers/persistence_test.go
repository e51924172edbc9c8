package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/rally/pkg/repositories/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type statsCall struct {
	username string
	won      bool
}

type fakeRepository struct {
	mu         sync.Mutex
	created    []uuid.UUID
	started    []uuid.UUID
	completed  []uuid.UUID
	statsCalls []statsCall
}

func (r *fakeRepository) Close(ctx context.Context) error {
	return nil
}

func (r *fakeRepository) CreateMatch(ctx context.Context, id uuid.UUID, player1 string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, id)
	return nil
}

func (r *fakeRepository) StartMatch(ctx context.Context, id uuid.UUID, player1, player2 string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, id)
	return nil
}

func (r *fakeRepository) CompleteMatch(ctx context.Context, id uuid.UUID, winnerAlias string, player1Score, player2Score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, id)
	return nil
}

func (r *fakeRepository) UpdatePlayerStats(ctx context.Context, username string, won bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsCalls = append(r.statsCalls, statsCall{username: username, won: won})
	return nil
}

func (r *fakeRepository) GetPlayerStats(ctx context.Context, username string) (*models.PlayerStats, error) {
	return nil, nil
}

func (r *fakeRepository) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchRecord, error) {
	return nil, nil
}

func TestPersistenceWorker_Lifecycle(t *testing.T) {
	repo := &fakeRepository{}
	w := NewPersistenceWorker(NewPersistenceWorkerOptions{Repository: repo})
	ctx := context.Background()
	id := uuid.New()

	w.handleEvent(ctx, MatchEvent{Type: MatchEventTypeCreated, RecordID: id, Player1: "alice"})
	w.handleEvent(ctx, MatchEvent{Type: MatchEventTypeStarted, RecordID: id, Player1: "alice", Player2: "bob"})
	w.handleEvent(ctx, MatchEvent{
		Type:         MatchEventTypeCompleted,
		RecordID:     id,
		Player1:      "alice",
		Player2:      "bob",
		WinnerAlias:  "bob",
		Player1Score: 2,
		Player2Score: 5,
		UpdateStats:  true,
	})

	assert.Equal(t, []uuid.UUID{id}, repo.created)
	assert.Equal(t, []uuid.UUID{id}, repo.started)
	assert.Equal(t, []uuid.UUID{id}, repo.completed)
	assert.Equal(t, []statsCall{
		{username: "bob", won: true},
		{username: "alice", won: false},
	}, repo.statsCalls)
}

func TestPersistenceWorker_SkipsStatsWhenDisabled(t *testing.T) {
	repo := &fakeRepository{}
	w := NewPersistenceWorker(NewPersistenceWorkerOptions{Repository: repo})
	ctx := context.Background()

	// Practice and aborted matches complete without touching stats.
	w.handleEvent(ctx, MatchEvent{
		Type:        MatchEventTypeCompleted,
		RecordID:    uuid.New(),
		Player1:     "alice",
		Player2:     "CPU",
		UpdateStats: false,
	})
	w.handleEvent(ctx, MatchEvent{
		Type:        MatchEventTypeCompleted,
		RecordID:    uuid.New(),
		Player1:     "alice",
		Player2:     "bob",
		WinnerAlias: "",
		UpdateStats: true,
	})

	assert.Len(t, repo.completed, 2)
	assert.Empty(t, repo.statsCalls)
}

func TestPersistenceWorker_StartDrainsEvents(t *testing.T) {
	repo := &fakeRepository{}
	events := make(chan MatchEvent, 4)
	w := NewPersistenceWorker(NewPersistenceWorkerOptions{Repository: repo, Events: events})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	id := uuid.New()
	events <- MatchEvent{Type: MatchEventTypeCreated, RecordID: id, Player1: "alice"}

	assert.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.created) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
