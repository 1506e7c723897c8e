package dto

// DashboardStats is the admin overview payload.
type DashboardStats struct {
	TotalStudents     int             `json:"totalStudents"`
	TotalCourses      int             `json:"totalCourses"`
	StudentsPerCourse []CourseCount   `json:"studentsPerCourse"`
	AvgMarksPerCourse []CourseAverage `json:"avgMarksPerCourse"`
	BatchDistribution []BatchCount    `json:"batchDistribution"`
	ExamPerformance   []NamedValue    `json:"examPerformance"`
}

// CourseCount is the number of students enrolled in a course.
type CourseCount struct {
	Name  string `json:"name" db:"name"`
	Count int    `json:"count" db:"count"`
}

// CourseAverage is the mean subject mark recorded for a course.
type CourseAverage struct {
	Name     string  `json:"name" db:"name"`
	AvgMarks float64 `json:"avgMarks" db:"avg_marks"`
}

// BatchCount is the number of students in a batch.
type BatchCount struct {
	Batch string `json:"batch" db:"batch"`
	Count int    `json:"count" db:"count"`
}

// NamedValue is a chart-friendly label/value pair.
type NamedValue struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}
