package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusPast     Status = "past"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusPast:
		return true
	}
	return false
}

// Поля документа, которые меняются точечно
const (
	FieldStatus         = "status"
	FieldTotalPot       = "totalPot"
	FieldWinnerUserID   = "winnerUserId"
	FieldIsPaidToWinner = "isPaidToWinner"
	FieldSettledAt      = "settledAt"
	FieldUpdatedAt      = "updatedAt"
	FieldStartDate      = "startDate"
	FieldEndDate        = "endDate"
)

// Challenge is a time-boxed coding contest. Money fields are minor units.
type Challenge struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	StartDate         time.Time  `json:"startDate"`
	EndDate           time.Time  `json:"endDate"`
	ParticipationCost int64      `json:"participationCost"`
	Status            Status     `json:"status"`
	TotalPot          int64      `json:"totalPot"`
	WinnerUserID      *string    `json:"winnerUserId"`
	IsPaidToWinner    bool       `json:"isPaidToWinner"`
	CreatedBy         string     `json:"createdBy"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	SettledAt         *time.Time `json:"settledAt"`
}

// HasWinner reports whether the challenge has been settled.
func (c *Challenge) HasWinner() bool {
	return c.WinnerUserID != nil && *c.WinnerUserID != ""
}

// AcceptsEntries reports whether new participations and submissions are allowed.
func (c *Challenge) AcceptsEntries() bool {
	return c.Status == StatusActive && !c.HasWinner()
}

// ChallengeInput is used for both create and update. On update nil fields
// are left untouched.
// @Description Данные челленджа
type ChallengeInput struct {
	Title             *string          `json:"title" example:"Longest palindrome"`
	Description       *string          `json:"description" example:"Find the longest palindromic substring"`
	StartDate         *string          `json:"startDate" example:"2024-06-01T10:00:00Z"`
	EndDate           *string          `json:"endDate" example:"2024-06-08T10:00:00Z"`
	ParticipationCost *decimal.Decimal `json:"participationCost" swaggertype:"string" example:"10.00"`
}

// ChallengeResponse represents a challenge in API responses
type ChallengeResponse struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	StartDate         time.Time  `json:"startDate"`
	EndDate           time.Time  `json:"endDate"`
	ParticipationCost string     `json:"participationCost" example:"10.00"`
	Status            Status     `json:"status" enums:"upcoming,active,past"`
	TotalPot          string     `json:"totalPot" example:"120.00"`
	WinnerUserID      *string    `json:"winnerUserId"`
	IsPaidToWinner    bool       `json:"isPaidToWinner"`
	CreatedBy         string     `json:"createdBy,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	SettledAt         *time.Time `json:"settledAt,omitempty"`
}

// StatusUpdate represents a status change request
type StatusUpdate struct {
	Status string `json:"status" binding:"required" example:"active" enums:"upcoming,active,past"`
}
