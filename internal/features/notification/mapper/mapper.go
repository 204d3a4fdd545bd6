package mapper

import "bytebattle-backend/internal/features/notification/models"

func ToResponse(n *models.Notification) *models.NotificationResponse {
	return &models.NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}

func ToResponses(items []*models.Notification) []*models.NotificationResponse {
	out := make([]*models.NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, ToResponse(n))
	}
	return out
}
