package models

import "time"

// EnterRequest represents a request to join a challenge
type EnterRequest struct {
	ChallengeID string `json:"challengeId" binding:"required" example:"0b6c3f3e-..."`
}

// SubmitRequest carries a result. Score is a pointer so that a missing
// score can be told apart from zero.
type SubmitRequest struct {
	Score *int64 `json:"score" binding:"required" example:"87"`
	Code  string `json:"code" example:"package main\n..."`
}

// RejectRequest represents a payment rejection
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"Transfer not received"`
}

// ParticipationResponse represents a participation in API responses
type ParticipationResponse struct {
	ID                      string        `json:"id"`
	UserID                  string        `json:"userId"`
	ChallengeID             string        `json:"challengeId"`
	ParticipationCost       string        `json:"participationCost" example:"10.00"`
	PaymentStatus           PaymentStatus `json:"paymentStatus" enums:"pending,confirmed,rejected"`
	IsPaid                  bool          `json:"isPaid"`
	Score                   *int64        `json:"score"`
	Code                    string        `json:"code,omitempty"`
	Winner                  bool          `json:"winner"`
	CreatedAt               time.Time     `json:"createdAt"`
	SubmissionDate          *time.Time    `json:"submissionDate,omitempty"`
	PaymentConfirmationDate *time.Time    `json:"paymentConfirmationDate,omitempty"`
	PaymentRejectedAt       *time.Time    `json:"paymentRejectedAt,omitempty"`
	RejectionReason         string        `json:"rejectionReason,omitempty"`
}

// PaymentInstructions tells the user how much to pay and which reference
// to quote so an admin can match the transfer.
type PaymentInstructions struct {
	Amount    string `json:"amount" example:"10.00"`
	Reference string `json:"reference"`
}

// EnterResponse is returned when a participation is created
type EnterResponse struct {
	Participation *ParticipationResponse `json:"participation"`
	Payment       PaymentInstructions    `json:"paymentInstructions"`
}

// LeaderboardEntry is one row of a challenge leaderboard. Code is never
// included.
type LeaderboardEntry struct {
	Rank            int        `json:"rank" example:"1"`
	ParticipationID string     `json:"participationId"`
	UserID          string     `json:"userId"`
	Username        string     `json:"username" example:"gopher"`
	JudgeUsername   string     `json:"judgeUsername,omitempty"`
	Score           int64      `json:"score" example:"87"`
	SubmissionDate  *time.Time `json:"submissionDate,omitempty"`
	Winner          bool       `json:"winner"`
}

// CodeReveal is a participant's code, visible once the challenge is past
type CodeReveal struct {
	ParticipationID string `json:"participationId"`
	Code            string `json:"code"`
	Username        string `json:"username"`
}
