package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/rally/pkg/repositories/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type PostgresRepository struct {
	conn *pgx.Conn
}

// NewPostgresRepository creates a new PostgresRepository and applies the
// schema migrations. The caller is responsible for calling Close().
func NewPostgresRepository(ctx context.Context, connStr string) (Repository, error) {
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	migrations, err := readMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %v", err)
	}

	for _, migration := range migrations {
		if _, err := conn.Exec(ctx, migration); err != nil {
			return nil, fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	return &PostgresRepository{
		conn: conn,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	return r.conn.Close(ctx)
}

func (r *PostgresRepository) CreateMatch(ctx context.Context, id uuid.UUID, player1 string) error {
	q := `
	INSERT INTO matches (id, player1, created_at) VALUES ($1, $2, $3)
	ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.conn.Exec(ctx, q, id.String(), player1, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	return nil
}

func (r *PostgresRepository) StartMatch(ctx context.Context, id uuid.UUID, player1, player2 string) error {
	q := `
	UPDATE matches SET player1 = $1, player2 = $2, started_at = $3
	WHERE id = $4;
	`
	_, err := r.conn.Exec(ctx, q, player1, player2, time.Now().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to start match: %v", err)
	}

	return nil
}

func (r *PostgresRepository) CompleteMatch(ctx context.Context, id uuid.UUID, winnerAlias string, player1Score, player2Score int) error {
	q := `
	UPDATE matches SET winner_alias = $1, player1_score = $2, player2_score = $3, completed_at = $4
	WHERE id = $5;
	`
	_, err := r.conn.Exec(ctx, q, winnerAlias, player1Score, player2Score, time.Now().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to complete match: %v", err)
	}

	return nil
}

func (r *PostgresRepository) UpdatePlayerStats(ctx context.Context, username string, won bool) error {
	wins := 0
	losses := 0
	if won {
		wins = 1
	} else {
		losses = 1
	}

	q := `
	INSERT INTO player_stats (username, wins, losses) VALUES ($1, $2, $3)
	ON CONFLICT (username) DO UPDATE SET wins = player_stats.wins + excluded.wins, losses = player_stats.losses + excluded.losses;
	`
	_, err := r.conn.Exec(ctx, q, username, wins, losses)
	if err != nil {
		return fmt.Errorf("failed to update player stats: %v", err)
	}

	return nil
}

func (r *PostgresRepository) GetPlayerStats(ctx context.Context, username string) (*models.PlayerStats, error) {
	q := `
	SELECT wins, losses FROM player_stats WHERE username = $1;
	`
	stats := &models.PlayerStats{Username: username}
	if err := r.conn.QueryRow(ctx, q, username).Scan(&stats.Wins, &stats.Losses); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player stats: %v", err)
	}

	return stats, nil
}

func (r *PostgresRepository) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchRecord, error) {
	q := `
	SELECT id, player1, player2, winner_alias, player1_score, player2_score, created_at, started_at, completed_at
	FROM matches WHERE id = $1;
	`
	record := &models.MatchRecord{}
	var rawID string
	err := r.conn.QueryRow(ctx, q, id.String()).Scan(
		&rawID, &record.Player1, &record.Player2, &record.WinnerAlias,
		&record.Player1Score, &record.Player2Score,
		&record.CreatedAt, &record.StartedAt, &record.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan match: %v", err)
	}

	record.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse match id: %v", err)
	}

	return record, nil
}
