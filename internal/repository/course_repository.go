package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-record-api/internal/models"
)

const courseColumns = `id, name, code, total_semesters, created_at, updated_at`
const subjectColumns = `id, course_id, semester, name, code, credit_hours, full_marks, pass_marks`

// CourseRepository manages courses and their curriculum tables.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository instantiates the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course together with empty semesters 1..TotalSemesters.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create course tx: %w", err)
	}
	const insertCourse = `INSERT INTO courses (id, name, code, total_semesters, created_at, updated_at) VALUES (:id, :name, :code, :total_semesters, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCourse, course); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert course: %w", err)
	}
	if err := insertSemesters(ctx, tx, course.ID, 1, course.TotalSemesters); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create course tx: %w", err)
	}
	course.Curriculum = models.NewCurriculum(course.TotalSemesters)
	return nil
}

func insertSemesters(ctx context.Context, tx *sqlx.Tx, courseID string, from, to int) error {
	if from > to {
		return nil
	}
	const query = `INSERT INTO course_semesters (course_id, semester) SELECT $1, s FROM generate_series($2::int, $3::int) AS s ON CONFLICT DO NOTHING`
	if _, err := tx.ExecContext(ctx, query, courseID, from, to); err != nil {
		return fmt.Errorf("insert semesters: %w", err)
	}
	return nil
}

// List returns all courses ordered by name, with curricula attached.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	if len(courses) == 0 {
		return []models.Course{}, nil
	}
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	subjects, err := r.subjectsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].Curriculum = buildCurriculum(courses[i].TotalSemesters, subjects[courses[i].ID])
	}
	return courses, nil
}

// FindByID returns a course with its curriculum.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	var course models.Course
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	subjects, err := r.subjectsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	course.Curriculum = buildCurriculum(course.TotalSemesters, subjects[id])
	return &course, nil
}

// ExistsByName reports whether another course already uses name.
func (r *CourseRepository) ExistsByName(ctx context.Context, name, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM courses WHERE name = $1 AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, excludeID); err != nil {
		return false, fmt.Errorf("check course name: %w", err)
	}
	return exists, nil
}

// ExistsByCode reports whether another course already uses code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM courses WHERE code = $1 AND id::text <> $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code, excludeID); err != nil {
		return false, fmt.Errorf("check course code: %w", err)
	}
	return exists, nil
}

func (r *CourseRepository) subjectsFor(ctx context.Context, courseIDs []string) (map[string][]models.Subject, error) {
	var subjects []models.Subject
	query := `SELECT ` + subjectColumns + ` FROM course_subjects WHERE course_id = ANY($1) ORDER BY semester ASC, code ASC`
	if err := r.db.SelectContext(ctx, &subjects, query, pq.Array(courseIDs)); err != nil {
		return nil, fmt.Errorf("list course subjects: %w", err)
	}
	grouped := make(map[string][]models.Subject, len(courseIDs))
	for _, s := range subjects {
		grouped[s.CourseID] = append(grouped[s.CourseID], s)
	}
	return grouped, nil
}

func buildCurriculum(total int, subjects []models.Subject) []models.Semester {
	curriculum := models.NewCurriculum(total)
	for _, s := range subjects {
		if s.Semester < 1 || s.Semester > total {
			continue
		}
		curriculum[s.Semester-1].Subjects = append(curriculum[s.Semester-1].Subjects, s)
	}
	return curriculum
}

// SemesterUsage counts subjects and exam results stored above the given semester.
func (r *CourseRepository) SemesterUsage(ctx context.Context, courseID string, above int) (models.SemesterUsage, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM course_subjects WHERE course_id = $1 AND semester > $2) AS subjects,
	(SELECT COUNT(*) FROM exam_results WHERE course_id = $1 AND semester > $2) AS exam_results`
	var usage models.SemesterUsage
	if err := r.db.GetContext(ctx, &usage, query, courseID, above); err != nil {
		return usage, fmt.Errorf("semester usage: %w", err)
	}
	return usage, nil
}

// References counts students and exam results pointing at the course.
func (r *CourseRepository) References(ctx context.Context, courseID string) (models.CourseReferences, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM users WHERE course_id = $1) AS students,
	(SELECT COUNT(*) FROM exam_results WHERE course_id = $1) AS exam_results`
	var refs models.CourseReferences
	if err := r.db.GetContext(ctx, &refs, query, courseID); err != nil {
		return refs, fmt.Errorf("course references: %w", err)
	}
	return refs, nil
}

// Update writes course fields. When total semesters changes, semesters are
// appended or the dropped range is removed with its subjects and exam results.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course, previousTotal int) error {
	course.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update course tx: %w", err)
	}
	const update = `UPDATE courses SET name = :name, code = :code, total_semesters = :total_semesters, updated_at = :updated_at WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, course); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update course: %w", err)
	}

	switch {
	case course.TotalSemesters > previousTotal:
		if err := insertSemesters(ctx, tx, course.ID, previousTotal+1, course.TotalSemesters); err != nil {
			_ = tx.Rollback()
			return err
		}
	case course.TotalSemesters < previousTotal:
		if _, err := tx.ExecContext(ctx, `DELETE FROM exam_results WHERE course_id = $1 AND semester > $2`, course.ID, course.TotalSemesters); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop semester results: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_semesters WHERE course_id = $1 AND semester > $2`, course.ID, course.TotalSemesters); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop semesters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update course tx: %w", err)
	}
	return nil
}

// Delete removes a course. With cascade, its exam results are deleted and its
// students unassigned in the same transaction.
func (r *CourseRepository) Delete(ctx context.Context, id string, cascade bool) error {
	if !validID(id) {
		return sql.ErrNoRows
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete course tx: %w", err)
	}
	if cascade {
		if _, err := tx.ExecContext(ctx, `DELETE FROM exam_results WHERE course_id = $1`, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete course results: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET course_id = NULL, updated_at = NOW() WHERE course_id = $1`, id); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("unassign course students: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete course tx: %w", err)
	}
	return nil
}

// AddSubject inserts a subject into a semester.
func (r *CourseRepository) AddSubject(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	const query = `INSERT INTO course_subjects (id, course_id, semester, name, code, credit_hours, full_marks, pass_marks) VALUES (:id, :course_id, :semester, :name, :code, :credit_hours, :full_marks, :pass_marks)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("add subject: %w", err)
	}
	return nil
}

// UpdateSubject rewrites a single subject row.
func (r *CourseRepository) UpdateSubject(ctx context.Context, subject *models.Subject) error {
	const query = `UPDATE course_subjects SET name = :name, code = :code, credit_hours = :credit_hours, full_marks = :full_marks, pass_marks = :pass_marks WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, subject)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update subject: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteSubject removes a subject by id.
func (r *CourseRepository) DeleteSubject(ctx context.Context, subjectID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM course_subjects WHERE id = $1`, subjectID)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
