package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
)

// ExamTypeCount is the number of stored results for one exam type.
type ExamTypeCount struct {
	ExamType models.ExamType `db:"exam_type"`
	Count    int             `db:"count"`
}

// DashboardRepository runs the aggregate reads behind the dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountStudents returns the number of student accounts.
func (r *DashboardRepository) CountStudents(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE role = 'student'`); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}

// CountCourses returns the number of courses.
func (r *DashboardRepository) CountCourses(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses`); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return total, nil
}

// StudentsPerCourse groups students by course. Students without a course are "Unassigned".
func (r *DashboardRepository) StudentsPerCourse(ctx context.Context) ([]dto.CourseCount, error) {
	const query = `SELECT COALESCE(c.name, 'Unassigned') AS name, COUNT(*) AS count
FROM users u
LEFT JOIN courses c ON c.id = u.course_id
WHERE u.role = 'student'
GROUP BY COALESCE(c.name, 'Unassigned')
ORDER BY name ASC`
	var rows []dto.CourseCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("students per course: %w", err)
	}
	return rows, nil
}

type courseAverageRow struct {
	CourseID sql.NullString `db:"course_id"`
	Name     sql.NullString `db:"name"`
	AvgMarks float64        `db:"avg_marks"`
}

// AvgMarksPerCourse averages every recorded subject mark per course, to one
// decimal. Rows whose course no longer resolves are labelled "Unknown".
func (r *DashboardRepository) AvgMarksPerCourse(ctx context.Context) ([]dto.CourseAverage, error) {
	const query = `SELECT er.course_id, c.name, ROUND(AVG(e.marks_obtained)::numeric, 1) AS avg_marks
FROM exam_results er
JOIN exam_result_entries e ON e.exam_result_id = er.id
LEFT JOIN courses c ON c.id = er.course_id
GROUP BY er.course_id, c.name`
	var rows []courseAverageRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("average marks per course: %w", err)
	}
	averages := make([]dto.CourseAverage, 0, len(rows))
	for _, row := range rows {
		name := "Unknown"
		if row.Name.Valid {
			name = row.Name.String
		}
		averages = append(averages, dto.CourseAverage{Name: name, AvgMarks: row.AvgMarks})
	}
	sort.SliceStable(averages, func(i, j int) bool { return averages[i].Name < averages[j].Name })
	return averages, nil
}

// BatchDistribution counts students per batch, newest batch first. Batches
// compare bytewise, so "Unknown" sorts ahead of numeric batches.
func (r *DashboardRepository) BatchDistribution(ctx context.Context) ([]dto.BatchCount, error) {
	const query = `SELECT COALESCE(NULLIF(batch, ''), 'Unknown') AS batch, COUNT(*) AS count
FROM users
WHERE role = 'student'
GROUP BY COALESCE(NULLIF(batch, ''), 'Unknown')
ORDER BY COALESCE(NULLIF(batch, ''), 'Unknown') COLLATE "C" DESC`
	var rows []dto.BatchCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("batch distribution: %w", err)
	}
	return rows, nil
}

// ExamTypeCounts counts stored results per exam type.
func (r *DashboardRepository) ExamTypeCounts(ctx context.Context) ([]ExamTypeCount, error) {
	const query = `SELECT exam_type, COUNT(*) AS count FROM exam_results GROUP BY exam_type ORDER BY exam_type DESC`
	var rows []ExamTypeCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("exam type counts: %w", err)
	}
	return rows, nil
}

// Ping checks database connectivity for readiness probes.
func (r *DashboardRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
