package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-record-api/internal/models"
)

const userColumns = `id, name, email, password_hash, role, course_id, batch, reset_token_hash, reset_expires_at, created_at, updated_at`

// UserRepository provides database access for accounts and students.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByResetToken returns the user holding an unexpired reset token hash.
func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE reset_token_hash = $1 AND reset_expires_at > $2 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, tokenHash, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by reset token: %w", err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	const query = `INSERT INTO users (id, name, email, password_hash, role, course_id, batch, created_at, updated_at) VALUES (:id, :name, :email, :password_hash, :role, :course_id, :batch, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes the admin-editable profile fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	user.Email = strings.ToLower(user.Email)
	const query = `UPDATE users SET name = :name, email = :email, course_id = :course_id, batch = :batch, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetResetToken stores the hash of a password reset token and its expiry.
func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	const query = `UPDATE users SET reset_token_hash = $2, reset_expires_at = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, tokenHash, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return nil
}

// ResetPassword sets a new password hash and clears the reset token.
func (r *UserRepository) ResetPassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, reset_token_hash = NULL, reset_expires_at = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

type studentRow struct {
	ID         string          `db:"id"`
	Name       string          `db:"name"`
	Email      string          `db:"email"`
	Role       models.UserRole `db:"role"`
	Batch      *string         `db:"batch"`
	CourseID   *string         `db:"course_id"`
	CourseName *string         `db:"course_name"`
	CourseCode *string         `db:"course_code"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func (row studentRow) toModel() models.Student {
	student := models.Student{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Role:      row.Role,
		Batch:     row.Batch,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.CourseID != nil && row.CourseName != nil {
		student.Course = &models.CourseSummary{ID: *row.CourseID, Name: *row.CourseName}
		if row.CourseCode != nil {
			student.Course.Code = *row.CourseCode
		}
	}
	return student
}

// ListStudents returns students matching the filter with their course joined in.
func (r *UserRepository) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	query := `SELECT u.id, u.name, u.email, u.role, u.batch, u.course_id, c.name AS course_name, c.code AS course_code, u.created_at, u.updated_at
FROM users u
LEFT JOIN courses c ON c.id = u.course_id
WHERE u.role = 'student'`
	if filter.CourseID != "" && !validID(filter.CourseID) {
		return []models.Student{}, nil
	}
	var args []interface{}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		query += fmt.Sprintf(" AND u.course_id = $%d", len(args))
	}
	if filter.Batch != "" {
		args = append(args, filter.Batch)
		query += fmt.Sprintf(" AND u.batch = $%d", len(args))
	}
	query += " ORDER BY u.name ASC"

	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

// Batches returns the distinct student batches, newest first. Ordering is
// bytewise so it does not depend on the database locale.
func (r *UserRepository) Batches(ctx context.Context) ([]string, error) {
	const query = `SELECT batch FROM users
WHERE role = 'student' AND batch IS NOT NULL AND batch <> ''
GROUP BY batch
ORDER BY batch COLLATE "C" DESC`
	var batches []string
	if err := r.db.SelectContext(ctx, &batches, query); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// DeleteStudent removes a student and every exam result that references them.
func (r *UserRepository) DeleteStudent(ctx context.Context, id string) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete student tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM exam_results WHERE student_id = $1`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete student results: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND role = 'student'`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete student tx: %w", err)
	}
	return nil
}

// AdminExists reports whether at least one admin account is present.
func (r *UserRepository) AdminExists(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE role = 'admin')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query); err != nil {
		return false, fmt.Errorf("check admin exists: %w", err)
	}
	return exists, nil
}
