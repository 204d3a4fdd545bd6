package models

// RegisterRequest represents a sign-up request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email" example:"dev@example.com"`
	Password string `json:"password" binding:"required" example:"hunter22"`
	Username string `json:"username" binding:"required" example:"gopher"`
}

// LoginRequest represents a sign-in request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email" example:"dev@example.com"`
	Password string `json:"password" binding:"required" example:"hunter22"`
}

// ProfileUpdate carries the fields a user may change about themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Username      *string `json:"username,omitempty" example:"gopher"`
	JudgeUsername *string `json:"judgeUsername,omitempty" example:"gopher_cf"`
	Bio           *string `json:"bio,omitempty"`
}

// PasswordChange represents a password change request
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" binding:"required" example:"hunter22"`
	NewPassword     string `json:"newPassword" binding:"required" example:"hunter42"`
}

// RoleUpdate represents a role change request
type RoleUpdate struct {
	Role string `json:"role" binding:"required,oneof=user admin" example:"admin" enums:"user,admin"`
}

// BanUpdate represents a ban/unban request
type BanUpdate struct {
	Banned *bool `json:"banned" binding:"required" example:"true"`
}

// UsersResponse represents a page of users
type UsersResponse struct {
	Items  []*UserResponse `json:"items"`
	Limit  int             `json:"limit" example:"50"`
	Offset int             `json:"offset" example:"0"`
}
