package dto

// CreateCourseRequest creates a course with empty semesters.
type CreateCourseRequest struct {
	Name           string `json:"name" validate:"required"`
	Code           string `json:"code" validate:"required"`
	TotalSemesters *int   `json:"totalSemesters" validate:"omitnil,min=1,max=20"`
}

// UpdateCourseRequest changes only the fields present in the payload.
type UpdateCourseRequest struct {
	Name           *string `json:"name" validate:"omitnil,min=1"`
	Code           *string `json:"code" validate:"omitnil,min=1"`
	TotalSemesters *int    `json:"totalSemesters" validate:"omitnil,min=1,max=20"`
}

// AddSubjectRequest adds a subject to one semester of a course.
type AddSubjectRequest struct {
	Semester    int      `json:"semester" validate:"required,min=1"`
	Name        string   `json:"name" validate:"required"`
	Code        string   `json:"code" validate:"required,digits"`
	CreditHours *int     `json:"creditHours" validate:"omitnil,min=0"`
	FullMarks   *float64 `json:"fullMarks" validate:"omitnil,gt=0"`
	PassMarks   *float64 `json:"passMarks" validate:"omitnil,min=0"`
}

// UpdateSubjectRequest changes only the fields present in the payload.
type UpdateSubjectRequest struct {
	Name        *string  `json:"name" validate:"omitnil,min=1"`
	Code        *string  `json:"code" validate:"omitnil,digits"`
	CreditHours *int     `json:"creditHours" validate:"omitnil,min=0"`
	FullMarks   *float64 `json:"fullMarks" validate:"omitnil,gt=0"`
	PassMarks   *float64 `json:"passMarks" validate:"omitnil,min=0"`
}
