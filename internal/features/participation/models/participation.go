package models

import (
	"sort"
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentRejected  PaymentStatus = "rejected"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentConfirmed, PaymentRejected:
		return true
	}
	return false
}

// Поля документа
const (
	FieldUserID                  = "userId"
	FieldChallengeID             = "challengeId"
	FieldPaymentStatus           = "paymentStatus"
	FieldIsPaid                  = "isPaid"
	FieldScore                   = "score"
	FieldCode                    = "code"
	FieldWinner                  = "winner"
	FieldCreatedAt               = "createdAt"
	FieldSubmissionDate          = "submissionDate"
	FieldPaymentConfirmationDate = "paymentConfirmationDate"
	FieldPaymentRejectedAt       = "paymentRejectedAt"
	FieldRejectionReason         = "rejectionReason"
)

// Key is the participation document id. One user enters a challenge at
// most once, so the key is derived from both ids.
func Key(userID, challengeID string) string {
	return userID + "_" + challengeID
}

// Participation is a user's entry in a challenge.
// ParticipationCost is the challenge cost at entry time, in minor units.
type Participation struct {
	ID                      string        `json:"id"`
	UserID                  string        `json:"userId"`
	ChallengeID             string        `json:"challengeId"`
	ParticipationCost       int64         `json:"participationCost"`
	PaymentStatus           PaymentStatus `json:"paymentStatus"`
	IsPaid                  bool          `json:"isPaid"`
	Score                   *int64        `json:"score"`
	Code                    string        `json:"code,omitempty"`
	Winner                  bool          `json:"winner"`
	CreatedAt               time.Time     `json:"createdAt"`
	SubmissionDate          *time.Time    `json:"submissionDate"`
	PaymentConfirmationDate *time.Time    `json:"paymentConfirmationDate"`
	PaymentRejectedAt       *time.Time    `json:"paymentRejectedAt"`
	RejectionReason         string        `json:"rejectionReason,omitempty"`
}

func (p *Participation) IsConfirmed() bool {
	return p.PaymentStatus == PaymentConfirmed
}

// ScoreValue returns the submitted score, or -1 when nothing was submitted.
func (p *Participation) ScoreValue() int64 {
	if p.Score == nil {
		return -1
	}
	return *p.Score
}

// Filter narrows participation listings. Empty fields match everything.
type Filter struct {
	UserID        string
	ChallengeID   string
	PaymentStatus PaymentStatus
}

// SortByRank orders by score descending, then by earlier submission.
// Participations without a submission date sort after those with one.
func SortByRank(items []*Participation) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ScoreValue() != b.ScoreValue() {
			return a.ScoreValue() > b.ScoreValue()
		}
		switch {
		case a.SubmissionDate == nil:
			return false
		case b.SubmissionDate == nil:
			return true
		}
		return a.SubmissionDate.Before(*b.SubmissionDate)
	})
}
