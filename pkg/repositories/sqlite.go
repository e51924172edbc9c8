package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cbodonnell/rally/pkg/repositories/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	migrations, err := readMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %v", err)
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return nil, fmt.Errorf("failed to execute migration: %v", err)
		}
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateMatch(ctx context.Context, id uuid.UUID, player1 string) error {
	q := `
	INSERT OR IGNORE INTO matches (id, player1, created_at)
	VALUES (?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, id.String(), player1, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert match: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) StartMatch(ctx context.Context, id uuid.UUID, player1, player2 string) error {
	q := `
	UPDATE matches SET player1 = ?, player2 = ?, started_at = ?
	WHERE id = ?;
	`
	_, err := r.db.ExecContext(ctx, q, player1, player2, time.Now().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to start match: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) CompleteMatch(ctx context.Context, id uuid.UUID, winnerAlias string, player1Score, player2Score int) error {
	q := `
	UPDATE matches SET winner_alias = ?, player1_score = ?, player2_score = ?, completed_at = ?
	WHERE id = ?;
	`
	_, err := r.db.ExecContext(ctx, q, winnerAlias, player1Score, player2Score, time.Now().UnixMilli(), id.String())
	if err != nil {
		return fmt.Errorf("failed to complete match: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) UpdatePlayerStats(ctx context.Context, username string, won bool) error {
	wins := 0
	losses := 0
	if won {
		wins = 1
	} else {
		losses = 1
	}

	q := `
	INSERT INTO player_stats (username, wins, losses) VALUES (?, ?, ?)
	ON CONFLICT (username) DO UPDATE SET wins = wins + excluded.wins, losses = losses + excluded.losses;
	`
	_, err := r.db.ExecContext(ctx, q, username, wins, losses)
	if err != nil {
		return fmt.Errorf("failed to update player stats: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) GetPlayerStats(ctx context.Context, username string) (*models.PlayerStats, error) {
	q := `
	SELECT wins, losses FROM player_stats WHERE username = ?;
	`
	stats := &models.PlayerStats{Username: username}
	if err := r.db.QueryRowContext(ctx, q, username).Scan(&stats.Wins, &stats.Losses); err != nil {
		if err == sql.ErrNoRows {
			return nil, &ErrNotFound{}
		}
		return nil, fmt.Errorf("failed to scan player stats: %v", err)
	}

	return stats, nil
}

func (r *SQLiteRepository) GetMatch(ctx context.Context, id uuid.UUID) (*models.MatchRecord, error) {
	q := `
	SELECT id, player1, player2, winner_alias, player1_score, player2_score, created_at, started_at, completed_at
	FROM matches WHERE id = ?;
	`
	record := &models.MatchRecord{}
	var rawID string
	err := r.db.QueryRowContext(ctx, q, id.String()).Scan(
		&rawID, &record.Player1, &record.Player2, &record.WinnerAlias,
		&record.Player1Score, &record.Player2Score,
		&record.CreatedAt, &record.StartedAt, &record.CompletedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
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
