package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

// User represents an application user stored in the users table.
type User struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Role           UserRole   `db:"role" json:"role"`
	CourseID       *string    `db:"course_id" json:"courseId,omitempty"`
	Batch          *string    `db:"batch" json:"batch,omitempty"`
	ResetTokenHash *string    `db:"reset_token_hash" json:"-"`
	ResetExpiresAt *time.Time `db:"reset_expires_at" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Student is the read model returned by student listings, with the course joined in.
type Student struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Role      UserRole       `json:"role"`
	Batch     *string        `json:"batch,omitempty"`
	Course    *CourseSummary `json:"course,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// StudentProfile is a single student with the full curriculum of their course.
type StudentProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
	Batch     *string   `json:"batch,omitempty"`
	Course    *Course   `json:"course,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StudentFilter captures filtering criteria for listing students.
type StudentFilter struct {
	CourseID string
	Batch    string
}
