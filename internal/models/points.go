package models

import (
	"time"

	"github.com/google/uuid"
)

// PointsEvent is one append-only ledger entry.
type PointsEvent struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Amount    int       `json:"amount"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is one ranked row of a leaderboard.
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	UserID    uuid.UUID `json:"user_id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Level     int       `json:"level"`
	Points    int       `json:"points"`
}
