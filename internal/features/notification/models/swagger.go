package models

import "time"

// CreateRequest represents an admin-authored notification
type CreateRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Title   string `json:"title" binding:"required,max=200" example:"Maintenance"`
	Message string `json:"message" binding:"required,max=1000" example:"The platform will be down tonight"`
	Type    string `json:"type" binding:"omitempty,oneof=payment participation winner challenge admin" example:"admin"`
}

// NotificationResponse represents a notification in API responses
type NotificationResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      Type       `json:"type" enums:"payment,participation,winner,challenge,admin"`
	IsRead    bool       `json:"isRead"`
	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}
