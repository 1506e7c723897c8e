package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-record-api/internal/models"
)

var examResultRowColumns = []string{"id", "student_id", "course_id", "semester", "exam_type", "total_marks", "percentage", "gpa", "remarks", "revision", "created_at", "updated_at"}

func TestExamFindByKeyLoadsEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_results WHERE student_id = $1 AND course_id = $2 AND semester = $3 AND exam_type = $4")).
		WithArgs(testStudentID, testCourseID, 1, models.ExamTypeBoard).
		WillReturnRows(sqlmock.NewRows(examResultRowColumns).
			AddRow("r1", testStudentID, testCourseID, 1, "board", 80.0, 80.0, 3.2, "Pass", 2, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM exam_result_entries WHERE exam_result_id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_result_id", "subject", "marks_obtained", "full_marks", "pass_marks", "status"}).
			AddRow("e1", "r1", "Maths", 80.0, 100.0, 40.0, "pass"))

	result, err := repo.FindByKey(context.Background(), models.ExamKey{StudentID: testStudentID, CourseID: testCourseID, Semester: 1, ExamType: models.ExamTypeBoard})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Revision)
	require.Len(t, result.Results, 1)
	assert.Equal(t, models.ResultPass, result.Results[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamFindByKeyMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery("FROM exam_results").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByKey(context.Background(), models.ExamKey{StudentID: testStudentID, CourseID: testCourseID, Semester: 1, ExamType: models.ExamTypeBoard})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestExamCreateInsertsEntries(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO exam_results").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO exam_result_entries").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result := &models.ExamResult{StudentID: testStudentID, CourseID: testCourseID, Semester: 1, ExamType: models.ExamTypeBoard}
	result.SetMarks("Maths", 55, 100, 40)
	require.NoError(t, repo.Create(context.Background(), result))
	assert.Equal(t, 1, result.Revision)
	assert.Equal(t, result.ID, result.Results[0].ExamResultID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamCreateConcurrentDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO exam_results").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	result := &models.ExamResult{StudentID: testStudentID, CourseID: testCourseID, Semester: 1, ExamType: models.ExamTypeBoard}
	assert.ErrorIs(t, repo.Create(context.Background(), result), ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamUpdateStaleRevision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $6 AND revision = $7")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	result := &models.ExamResult{ID: "r1", Revision: 3}
	assert.ErrorIs(t, repo.Update(context.Background(), result, 3), ErrStaleRevision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamUpdateBumpsRevision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE exam_results SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (exam_result_id, subject) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result := &models.ExamResult{ID: "r1", Revision: 1}
	result.SetMarks("Maths", 70, 100, 40)
	require.NoError(t, repo.Update(context.Background(), result, 1))
	assert.Equal(t, 2, result.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExamListByStudentExpandsCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	now := time.Now()
	columns := append(append([]string{}, examResultRowColumns...), "course_name", "course_code")
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY er.semester ASC, er.exam_type ASC")).
		WithArgs(testStudentID).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("r1", testStudentID, testCourseID, 1, "board", 80.0, 80.0, 3.2, "Pass", 1, now, now, "BIM", "BIM").
			AddRow("r2", testStudentID, testCourseID, 1, "pre-board", 30.0, 30.0, 1.2, "Fail", 1, now, now, "BIM", "BIM"))
	mock.ExpectQuery("FROM exam_result_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id", "exam_result_id", "subject", "marks_obtained", "full_marks", "pass_marks", "status"}).
			AddRow("e1", "r1", "Maths", 80.0, 100.0, 40.0, "pass"))

	results, err := repo.ListByStudent(context.Background(), testStudentID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results[0].Course)
	assert.Equal(t, "BIM", results[0].Course.Name)
	assert.Len(t, results[0].Results, 1)
	assert.Empty(t, results[1].Results)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubjectMarksJoinsStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExamRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = er.student_id")).
		WithArgs(testCourseID, 2, models.ExamTypePreBoard, "Maths").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "student_name", "student_email", "marks_obtained", "full_marks", "pass_marks", "status"}).
			AddRow(testStudentID, "Asha", "asha@example.com", 40.0, 100.0, 40.0, "pass"))

	marks, err := repo.SubjectMarks(context.Background(), models.SubjectMarksFilter{CourseID: testCourseID, Semester: 2, ExamType: models.ExamTypePreBoard, Subject: "Maths"})
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, 40.0, marks[0].MarksObtained)
	assert.NoError(t, mock.ExpectationsWereMet())
}
