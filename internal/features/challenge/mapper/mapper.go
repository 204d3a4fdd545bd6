package mapper

import (
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/features/challenge/models"
)

func ToResponse(c *models.Challenge) *models.ChallengeResponse {
	return &models.ChallengeResponse{
		ID:                c.ID,
		Title:             c.Title,
		Description:       c.Description,
		StartDate:         c.StartDate,
		EndDate:           c.EndDate,
		ParticipationCost: money.Format(c.ParticipationCost),
		Status:            c.Status,
		TotalPot:          money.Format(c.TotalPot),
		WinnerUserID:      c.WinnerUserID,
		IsPaidToWinner:    c.IsPaidToWinner,
		CreatedBy:         c.CreatedBy,
		CreatedAt:         c.CreatedAt,
		SettledAt:         c.SettledAt,
	}
}

func ToResponses(items []*models.Challenge) []*models.ChallengeResponse {
	out := make([]*models.ChallengeResponse, 0, len(items))
	for _, c := range items {
		out = append(out, ToResponse(c))
	}
	return out
}
