package mapper

import (
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/features/user/models"
)

// ToUserResponse maps User model to UserResponse DTO
func ToUserResponse(user *models.User) *models.UserResponse {
	return &models.UserResponse{
		ID:                  user.ID,
		Email:               user.Email,
		Username:            user.Username,
		Role:                user.Role,
		IsBanned:            user.IsBanned,
		ChallengeWins:       user.ChallengeWins,
		TotalParticipations: user.TotalParticipations,
		TotalEarnings:       money.Format(user.TotalEarnings),
		JudgeUsername:       user.JudgeUsername,
		Bio:                 user.Bio,
		CreatedAt:           user.CreatedAt,
	}
}

// ToPublicUserResponse hides contact details from other users.
func ToPublicUserResponse(user *models.User) *models.UserResponse {
	resp := ToUserResponse(user)
	resp.Email = ""
	return resp
}
