package dto

// UpdateStudentRequest changes only the fields present in the payload. An
// empty course string unassigns the student.
type UpdateStudentRequest struct {
	Name     *string `json:"name" validate:"omitnil,min=1"`
	Email    *string `json:"email" validate:"omitnil,email"`
	CourseID *string `json:"course"`
	Batch    *string `json:"batch"`
}
