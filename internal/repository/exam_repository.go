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

const examResultColumns = `id, student_id, course_id, semester, exam_type, total_marks, percentage, gpa, remarks, revision, created_at, updated_at`
const examEntryColumns = `id, exam_result_id, subject, marks_obtained, full_marks, pass_marks, status`

// ExamRepository stores exam result headers and their subject entries.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository builds the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindByKey loads the result for a student sitting, entries included.
func (r *ExamRepository) FindByKey(ctx context.Context, key models.ExamKey) (*models.ExamResult, error) {
	if !validID(key.StudentID, key.CourseID) {
		return nil, sql.ErrNoRows
	}
	var result models.ExamResult
	query := `SELECT ` + examResultColumns + ` FROM exam_results WHERE student_id = $1 AND course_id = $2 AND semester = $3 AND exam_type = $4`
	if err := r.db.GetContext(ctx, &result, query, key.StudentID, key.CourseID, key.Semester, key.ExamType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find exam result: %w", err)
	}
	entries, err := r.entriesFor(ctx, []string{result.ID})
	if err != nil {
		return nil, err
	}
	result.Results = entries[result.ID]
	return &result, nil
}

// Create inserts a new result at revision 1. A concurrent insert of the same
// key surfaces as ErrDuplicate.
func (r *ExamRepository) Create(ctx context.Context, result *models.ExamResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now
	result.Revision = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create exam result tx: %w", err)
	}
	const insert = `INSERT INTO exam_results (id, student_id, course_id, semester, exam_type, total_marks, percentage, gpa, remarks, revision, created_at, updated_at) VALUES (:id, :student_id, :course_id, :semester, :exam_type, :total_marks, :percentage, :gpa, :remarks, :revision, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, result); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert exam result: %w", err)
	}
	if err := upsertEntries(ctx, tx, result); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create exam result tx: %w", err)
	}
	return nil
}

// Update persists the summary and entries when the stored revision still
// equals expectedRevision. Otherwise it returns ErrStaleRevision.
func (r *ExamRepository) Update(ctx context.Context, result *models.ExamResult, expectedRevision int) error {
	result.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update exam result tx: %w", err)
	}
	const update = `UPDATE exam_results SET total_marks = $1, percentage = $2, gpa = $3, remarks = $4, revision = revision + 1, updated_at = $5 WHERE id = $6 AND revision = $7`
	res, err := tx.ExecContext(ctx, update, result.TotalMarks, result.Percentage, result.GPA, result.Remarks, result.UpdatedAt, result.ID, expectedRevision)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update exam result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update exam result rows: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return ErrStaleRevision
	}
	if err := upsertEntries(ctx, tx, result); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update exam result tx: %w", err)
	}
	result.Revision = expectedRevision + 1
	return nil
}

func upsertEntries(ctx context.Context, tx *sqlx.Tx, result *models.ExamResult) error {
	const query = `INSERT INTO exam_result_entries (id, exam_result_id, subject, marks_obtained, full_marks, pass_marks, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (exam_result_id, subject) DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained, full_marks = EXCLUDED.full_marks, pass_marks = EXCLUDED.pass_marks, status = EXCLUDED.status`
	for i := range result.Results {
		entry := &result.Results[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.ExamResultID = result.ID
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.ExamResultID, entry.Subject, entry.MarksObtained, entry.FullMarks, entry.PassMarks, entry.Status); err != nil {
			return fmt.Errorf("upsert exam entry: %w", err)
		}
	}
	return nil
}

func (r *ExamRepository) entriesFor(ctx context.Context, resultIDs []string) (map[string][]models.SubjectResult, error) {
	var entries []models.SubjectResult
	query := `SELECT ` + examEntryColumns + ` FROM exam_result_entries WHERE exam_result_id = ANY($1) ORDER BY subject ASC`
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(resultIDs)); err != nil {
		return nil, fmt.Errorf("list exam entries: %w", err)
	}
	grouped := make(map[string][]models.SubjectResult, len(resultIDs))
	for _, e := range entries {
		grouped[e.ExamResultID] = append(grouped[e.ExamResultID], e)
	}
	return grouped, nil
}

// SubjectMarks lists every existing student's entry for one subject of a sitting.
func (r *ExamRepository) SubjectMarks(ctx context.Context, filter models.SubjectMarksFilter) ([]models.SubjectMark, error) {
	const query = `SELECT er.student_id, u.name AS student_name, u.email AS student_email, e.marks_obtained, e.full_marks, e.pass_marks, e.status
FROM exam_results er
JOIN users u ON u.id = er.student_id
JOIN exam_result_entries e ON e.exam_result_id = er.id
WHERE er.course_id = $1 AND er.semester = $2 AND er.exam_type = $3 AND e.subject = $4
ORDER BY u.name ASC`
	if !validID(filter.CourseID) {
		return []models.SubjectMark{}, nil
	}
	var marks []models.SubjectMark
	if err := r.db.SelectContext(ctx, &marks, query, filter.CourseID, filter.Semester, filter.ExamType, filter.Subject); err != nil {
		return nil, fmt.Errorf("list subject marks: %w", err)
	}
	return marks, nil
}

type studentResultRow struct {
	models.ExamResult
	CourseName *string `db:"course_name"`
	CourseCode *string `db:"course_code"`
}

// ListByStudent returns a student's results ordered by semester then exam type.
func (r *ExamRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ExamResult, error) {
	const query = `SELECT er.id, er.student_id, er.course_id, er.semester, er.exam_type, er.total_marks, er.percentage, er.gpa, er.remarks, er.revision, er.created_at, er.updated_at, c.name AS course_name, c.code AS course_code
FROM exam_results er
LEFT JOIN courses c ON c.id = er.course_id
WHERE er.student_id = $1
ORDER BY er.semester ASC, er.exam_type ASC`
	if !validID(studentID) {
		return []models.ExamResult{}, nil
	}
	var rows []studentResultRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	if len(rows) == 0 {
		return []models.ExamResult{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	entries, err := r.entriesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]models.ExamResult, 0, len(rows))
	for _, row := range rows {
		result := row.ExamResult
		result.Results = entries[result.ID]
		if result.Results == nil {
			result.Results = []models.SubjectResult{}
		}
		if row.CourseName != nil {
			result.Course = &models.CourseSummary{ID: result.CourseID, Name: *row.CourseName}
			if row.CourseCode != nil {
				result.Course.Code = *row.CourseCode
			}
		}
		results = append(results, result)
	}
	return results, nil
}
