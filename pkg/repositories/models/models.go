package models

import "github.com/google/uuid"

type MatchRecord struct {
	ID           uuid.UUID `json:"id"`
	Player1      string    `json:"player1"`
	Player2      string    `json:"player2"`
	WinnerAlias  string    `json:"winner_alias,omitempty"`
	Player1Score int       `json:"player1_score"`
	Player2Score int       `json:"player2_score"`
	CreatedAt    int64     `json:"created_at"`
	StartedAt    int64     `json:"started_at,omitempty"`
	CompletedAt  int64     `json:"completed_at,omitempty"`
}

type PlayerStats struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}
