package mapper

import (
	"bytebattle-backend/internal/common/money"
	"bytebattle-backend/internal/features/participation/models"
)

// ToResponse maps a participation; code is only included when withCode is set.
func ToResponse(p *models.Participation, withCode bool) *models.ParticipationResponse {
	resp := &models.ParticipationResponse{
		ID:                      p.ID,
		UserID:                  p.UserID,
		ChallengeID:             p.ChallengeID,
		ParticipationCost:       money.Format(p.ParticipationCost),
		PaymentStatus:           p.PaymentStatus,
		IsPaid:                  p.IsPaid,
		Score:                   p.Score,
		Winner:                  p.Winner,
		CreatedAt:               p.CreatedAt,
		SubmissionDate:          p.SubmissionDate,
		PaymentConfirmationDate: p.PaymentConfirmationDate,
		PaymentRejectedAt:       p.PaymentRejectedAt,
		RejectionReason:         p.RejectionReason,
	}
	if withCode {
		resp.Code = p.Code
	}
	return resp
}

func ToResponses(items []*models.Participation, withCode bool) []*models.ParticipationResponse {
	out := make([]*models.ParticipationResponse, 0, len(items))
	for _, p := range items {
		out = append(out, ToResponse(p, withCode))
	}
	return out
}

func ToEnterResponse(p *models.Participation) *models.EnterResponse {
	return &models.EnterResponse{
		Participation: ToResponse(p, false),
		Payment: models.PaymentInstructions{
			Amount:    money.Format(p.ParticipationCost),
			Reference: p.ID,
		},
	}
}
