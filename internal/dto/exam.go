package dto

// SubjectMarksResponse pre-fills the marks entry sheet for one subject.
type SubjectMarksResponse struct {
	Marks map[string]float64 `json:"marks"`
	Meta  SubjectMarksMeta   `json:"meta"`
}

// SubjectMarksMeta carries the thresholds used when the marks were saved.
type SubjectMarksMeta struct {
	FullMarks float64 `json:"fullMarks"`
	PassMarks float64 `json:"passMarks"`
}

// BulkMarksResult summarises a bulk mark submission entry by entry.
type BulkMarksResult struct {
	SuccessCount int                `json:"successCount"`
	Failures     []BulkMarksFailure `json:"failures,omitempty"`
}

// BulkMarksFailure describes why a single entry was not saved.
type BulkMarksFailure struct {
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
}

// BulkMarksRequest records one subject's marks for many students at once.
type BulkMarksRequest struct {
	CourseID    string          `json:"courseId" validate:"required,uuid"`
	Semester    int             `json:"semester" validate:"required,min=1"`
	ExamType    string          `json:"examType" validate:"required,oneof=pre-board board"`
	SubjectName string          `json:"subjectName" validate:"required"`
	FullMarks   *float64        `json:"fullMarks" validate:"omitnil,gt=0"`
	PassMarks   *float64        `json:"passMarks" validate:"omitnil,min=0"`
	Entries     []BulkMarkEntry `json:"marksData" validate:"required,min=1,dive"`
}

// BulkMarkEntry is one student's mark.
type BulkMarkEntry struct {
	StudentID string   `json:"studentId" validate:"required"`
	Marks     *float64 `json:"marks" validate:"required,min=0"`
}

// SubjectMarksQuery selects the marks sheet of one subject.
type SubjectMarksQuery struct {
	CourseID    string `form:"courseId" json:"courseId" validate:"required,uuid"`
	Semester    int    `form:"semester" json:"semester" validate:"required,min=1"`
	ExamType    string `form:"examType" json:"examType" validate:"required,oneof=pre-board board"`
	SubjectName string `form:"subjectName" json:"subjectName" validate:"required"`
}
