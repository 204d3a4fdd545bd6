package models

import "time"

type Type string

const (
	TypePayment       Type = "payment"
	TypeParticipation Type = "participation"
	TypeWinner        Type = "winner"
	TypeChallenge     Type = "challenge"
	TypeAdmin         Type = "admin"
)

func (t Type) Valid() bool {
	switch t {
	case TypePayment, TypeParticipation, TypeWinner, TypeChallenge, TypeAdmin:
		return true
	}
	return false
}

const (
	FieldUserID    = "userId"
	FieldIsRead    = "isRead"
	FieldReadAt    = "readAt"
	FieldCreatedAt = "createdAt"
)

// Notification is a message stored for one user.
type Notification struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      Type       `json:"type"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt"`
}

// EventKind says how the consumer fans an event out.
type EventKind string

const (
	// EventUser goes to UserID only.
	EventUser EventKind = "user"
	// EventAdmins goes to every user with the admin role.
	EventAdmins EventKind = "admins"
	// EventSettlement goes to the winner and every other participant.
	EventSettlement EventKind = "settlement"
)

// Event is what producers put on the queue.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	UserID    string    `json:"userId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	Type      Type      `json:"type,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	Settlement *Settlement `json:"settlement,omitempty"`
}

// Settlement describes a concluded challenge.
type Settlement struct {
	ChallengeID    string `json:"challengeId"`
	ChallengeTitle string `json:"challengeTitle"`
	WinnerID       string `json:"winnerId"`
	WinnerUsername string `json:"winnerUsername"`
	// Prize in minor units.
	Prize int64 `json:"prize"`
}
