package models

import "time"

// Result is the outcome of a settlement. PrizeAmount is in minor units.
type Result struct {
	ChallengeID string    `json:"challengeId"`
	WinnerID    string    `json:"winnerId"`
	Score       int64     `json:"score"`
	PrizeAmount int64     `json:"prizeAmount"`
	SettledAt   time.Time `json:"settledAt"`
}

// DeclareWinnerRequest represents a manual winner declaration
type DeclareWinnerRequest struct {
	WinnerID string `json:"winnerId" binding:"required" example:"6f1c..."`
	Score    *int64 `json:"score" binding:"required" example:"87"`
}

// ResultResponse represents a settlement in API responses
type ResultResponse struct {
	ChallengeID string    `json:"challengeId"`
	WinnerID    string    `json:"winnerId"`
	Score       int64     `json:"score" example:"87"`
	PrizeAmount string    `json:"prizeAmount" example:"120.00"`
	SettledAt   time.Time `json:"settledAt"`
}
