package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Счётчики, которые меняются атомарными инкрементами
const (
	FieldChallengeWins       = "challengeWins"
	FieldTotalParticipations = "totalParticipations"
	FieldTotalEarnings       = "totalEarnings"
)

// User представляет полную модель пользователя в системе
// @Description Полная модель пользователя
type User struct {
	ID                  string    `json:"id" example:"6f1c..." description:"ID пользователя (совпадает с subject в токене)"`
	Email               string    `json:"email" example:"dev@example.com"`
	Username            string    `json:"username" example:"gopher"`
	Role                Role      `json:"role" example:"user" enums:"user,admin"`
	IsBanned            bool      `json:"isBanned"`
	ChallengeWins       int64     `json:"challengeWins"`
	TotalParticipations int64     `json:"totalParticipations"`
	TotalEarnings       int64     `json:"totalEarnings" description:"В центах"`
	JudgeUsername       string    `json:"judgeUsername,omitempty" description:"Ник на внешней платформе проверки"`
	Bio                 string    `json:"bio,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserResponse представляет публичную информацию о пользователе
// @Description Публичная информация о пользователе
type UserResponse struct {
	ID                  string    `json:"id"`
	Email               string    `json:"email,omitempty"`
	Username            string    `json:"username" example:"gopher"`
	Role                Role      `json:"role" example:"user" enums:"user,admin"`
	IsBanned            bool      `json:"isBanned"`
	ChallengeWins       int64     `json:"challengeWins" example:"3"`
	TotalParticipations int64     `json:"totalParticipations" example:"12"`
	TotalEarnings       string    `json:"totalEarnings" example:"150.00"`
	JudgeUsername       string    `json:"judgeUsername,omitempty"`
	Bio                 string    `json:"bio,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// Session is returned by register and login.
type Session struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}
