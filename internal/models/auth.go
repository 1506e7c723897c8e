package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"`
	User      UserInfo `json:"user"`
}

// RegisterRequest creates a new account. Only admins may call it.
type RegisterRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role" validate:"omitempty,oneof=admin student"`
	CourseID *string  `json:"course" validate:"omitempty,uuid"`
	Batch    *string  `json:"batch"`
}

// ChangePasswordRequest payload for updating password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ForgotPasswordRequest payload for initiating reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes reset flow.
type ResetPasswordRequest struct {
	Token    string `json:"-" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	CourseID *string  `json:"courseId,omitempty"`
	Batch    *string  `json:"batch,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID string   `json:"id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller handed to services that make ownership decisions.
type Identity struct {
	UserID string
	Role   UserRole
}

// IsAdmin reports whether the caller is an administrator.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccessStudent reports whether the caller may read records owned by studentID.
func (i Identity) CanAccessStudent(studentID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == studentID)
}

// Identity converts verified claims into an Identity value.
func (c *JWTClaims) Identity() Identity {
	if c == nil {
		return Identity{}
	}
	return Identity{UserID: c.UserID, Role: c.Role}
}
