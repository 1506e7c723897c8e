package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-record-api/internal/dto"
	"github.com/noah-isme/student-record-api/internal/models"
	"github.com/noah-isme/student-record-api/internal/repository"
	appErrors "github.com/noah-isme/student-record-api/pkg/errors"
)

// memoryStudents layers the student queries over memoryUsers and deletes
// results together with the student.
type memoryStudents struct {
	*memoryUsers
	exams      *memoryExams
	lastFilter models.StudentFilter
}

func (m *memoryStudents) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	m.lastFilter = filter
	var out []models.Student
	for _, u := range m.users {
		if u.Role != models.RoleStudent {
			continue
		}
		if filter.CourseID != "" && (u.CourseID == nil || *u.CourseID != filter.CourseID) {
			continue
		}
		if filter.Batch != "" && (u.Batch == nil || *u.Batch != filter.Batch) {
			continue
		}
		out = append(out, models.Student{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Batch: u.Batch})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStudents) Batches(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, u := range m.users {
		if u.Role != models.RoleStudent || u.Batch == nil || *u.Batch == "" || seen[*u.Batch] {
			continue
		}
		seen[*u.Batch] = true
		out = append(out, *u.Batch)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (m *memoryStudents) UpdateProfile(ctx context.Context, user *models.User) error {
	for id, u := range m.users {
		if id != user.ID && strings.EqualFold(u.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memoryStudents) DeleteStudent(ctx context.Context, id string) error {
	u, ok := m.users[id]
	if !ok || u.Role != models.RoleStudent {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	for key := range m.exams.results {
		if key.StudentID == id {
			delete(m.exams.results, key)
		}
	}
	return nil
}

func newStudentFixture(t *testing.T) (*StudentService, *memoryStudents, *examFixture) {
	t.Helper()
	f := newExamFixture(t)
	f.users.users["s1"].Batch = stringPtr("2079")
	f.users.users["s2"].Batch = stringPtr("2081")
	f.users.users["s3"] = &models.User{ID: "s3", Name: "Chandra", Email: "chandra@example.com", Role: models.RoleStudent, Batch: stringPtr("2080")}

	repo := &memoryStudents{memoryUsers: f.users, exams: f.exams}
	svc := NewStudentService(repo, f.courseRepo, f.cache, nil, nil)
	return svc, repo, f
}

func TestStudentBatchesNewestFirst(t *testing.T) {
	svc, _, _ := newStudentFixture(t)

	batches, err := svc.Batches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2081", "2080", "2079"}, batches)
}

func TestStudentListFiltersAndExcludesAdmins(t *testing.T) {
	svc, repo, f := newStudentFixture(t)

	students, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, students, 3)

	students, err = svc.List(context.Background(), models.StudentFilter{CourseID: f.course.ID, Batch: "2081"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "s2", students[0].ID)
	assert.Equal(t, "2081", repo.lastFilter.Batch)
}

func TestStudentGetRequiresSelfOrAdmin(t *testing.T) {
	svc, _, f := newStudentFixture(t)
	ctx := context.Background()

	profile, err := svc.Get(ctx, models.Identity{UserID: "s1", Role: models.RoleStudent}, "s1")
	require.NoError(t, err)
	require.NotNil(t, profile.Course)
	assert.Equal(t, f.course.ID, profile.Course.ID)
	assert.Len(t, profile.Course.Curriculum, 8)

	_, err = svc.Get(ctx, models.Identity{UserID: "s2", Role: models.RoleStudent}, "s1")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Get(ctx, models.Identity{UserID: "admin", Role: models.RoleAdmin}, "admin")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStudentUpdateRejectsDuplicateEmailAndUnknownCourse(t *testing.T) {
	svc, _, _ := newStudentFixture(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "s1", dto.UpdateStudentRequest{Email: stringPtr("bikash@example.com")})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrDuplicate))

	_, err = svc.Update(ctx, "s1", dto.UpdateStudentRequest{CourseID: stringPtr("missing")})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestStudentUpdateUnassignsCourse(t *testing.T) {
	svc, _, f := newStudentFixture(t)

	profile, err := svc.Update(context.Background(), "s1", dto.UpdateStudentRequest{CourseID: stringPtr(""), Name: stringPtr(" Asha Rai ")})
	require.NoError(t, err)
	assert.Nil(t, profile.Course)
	assert.Equal(t, "Asha Rai", profile.Name)
	assert.Equal(t, []string{dashboardCachePattern}, f.cache.patterns)
}

func TestStudentDeleteRemovesResults(t *testing.T) {
	svc, repo, f := newStudentFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveBulkMarks(ctx, f.bulk("Maths", map[string]float64{"s1": 60, "s2": 70}))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "s1"))
	_, ok := repo.users["s1"]
	assert.False(t, ok)
	require.Len(t, f.exams.results, 1)
	for key := range f.exams.results {
		assert.Equal(t, "s2", key.StudentID)
	}

	err = svc.Delete(ctx, "s1")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
