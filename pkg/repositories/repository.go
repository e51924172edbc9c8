package repositories

import (
	"context"

	"github.com/cbodonnell/rally/pkg/repositories/models"
	"github.com/google/uuid"
)

// Repository is the durable storage boundary for match bookkeeping.
// Gameplay never blocks on any of these calls; failures are logged by
// the caller and the match carries on.
type Repository interface {
	Close(ctx context.Context) error
	CreateMatch(ctx context.Context, id uuid.UUID, player1 string) error
	StartMatch(ctx context.Context, id uuid.UUID, player1, player2 string) error
	CompleteMatch(ctx context.Context, id uuid.UUID, winnerAlias string, player1Score, player2Score int) error
	UpdatePlayerStats(ctx context.Context, username string, won bool) error
	GetPlayerStats(ctx context.Context, username string) (*models.PlayerStats, error)
	GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchRecord, error)
}
