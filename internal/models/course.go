package models

import "time"

const (
	DefaultTotalSemesters = 8
	DefaultCreditHours    = 3
	DefaultFullMarks      = 100.0
	DefaultPassMarks      = 40.0
)

// Course is a degree programme with its curriculum of semesters.
type Course struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	Code           string     `db:"code" json:"code"`
	TotalSemesters int        `db:"total_semesters" json:"totalSemesters"`
	Curriculum     []Semester `db:"-" json:"curriculum"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// Semester groups the subjects taught in one semester of a course.
type Semester struct {
	Semester int       `json:"semester"`
	Subjects []Subject `json:"subjects"`
}

// Subject is a curriculum entry. Its code is unique across the whole course.
type Subject struct {
	ID          string  `db:"id" json:"id"`
	CourseID    string  `db:"course_id" json:"-"`
	Semester    int     `db:"semester" json:"-"`
	Name        string  `db:"name" json:"name"`
	Code        string  `db:"code" json:"code"`
	CreditHours int     `db:"credit_hours" json:"creditHours"`
	FullMarks   float64 `db:"full_marks" json:"fullMarks"`
	PassMarks   float64 `db:"pass_marks" json:"passMarks"`
}

// CourseSummary is the compact course reference embedded in other payloads.
type CourseSummary struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Code string `db:"code" json:"code"`
}

// CourseReferences counts rows that point at a course.
type CourseReferences struct {
	Students    int `db:"students"`
	ExamResults int `db:"exam_results"`
}

// Any reports whether anything still references the course.
func (r CourseReferences) Any() bool {
	return r.Students > 0 || r.ExamResults > 0
}

// SemesterUsage counts data stored in a range of semesters.
type SemesterUsage struct {
	Subjects    int `db:"subjects"`
	ExamResults int `db:"exam_results"`
}

// Empty reports whether the range can be dropped without losing data.
func (u SemesterUsage) Empty() bool {
	return u.Subjects == 0 && u.ExamResults == 0
}

// NewCurriculum returns empty semesters numbered 1..total.
func NewCurriculum(total int) []Semester {
	curriculum := make([]Semester, 0, total)
	for i := 1; i <= total; i++ {
		curriculum = append(curriculum, Semester{Semester: i, Subjects: []Subject{}})
	}
	return curriculum
}

// Summary returns the compact form of the course.
func (c *Course) Summary() *CourseSummary {
	if c == nil {
		return nil
	}
	return &CourseSummary{ID: c.ID, Name: c.Name, Code: c.Code}
}

// FindSemester returns the semester entry with the given number.
func (c *Course) FindSemester(number int) *Semester {
	if c == nil {
		return nil
	}
	for i := range c.Curriculum {
		if c.Curriculum[i].Semester == number {
			return &c.Curriculum[i]
		}
	}
	return nil
}

// FindSubject locates a subject by semester and code.
func (c *Course) FindSubject(semester int, code string) *Subject {
	sem := c.FindSemester(semester)
	if sem == nil {
		return nil
	}
	for i := range sem.Subjects {
		if sem.Subjects[i].Code == code {
			return &sem.Subjects[i]
		}
	}
	return nil
}

// HasSubjectCode reports whether any semester already uses code, ignoring the subject with id excludeID.
func (c *Course) HasSubjectCode(code, excludeID string) bool {
	if c == nil {
		return false
	}
	for _, sem := range c.Curriculum {
		for _, sub := range sem.Subjects {
			if sub.Code == code && sub.ID != excludeID {
				return true
			}
		}
	}
	return false
}
