package models

import (
	"math"
	"time"
)

// ExamType distinguishes the two exam sittings tracked per semester.
type ExamType string

const (
	ExamTypePreBoard ExamType = "pre-board"
	ExamTypeBoard    ExamType = "board"
)

// Valid reports whether t is a known exam type.
func (t ExamType) Valid() bool {
	return t == ExamTypePreBoard || t == ExamTypeBoard
}

// Label is the display name used by dashboards and reports.
func (t ExamType) Label() string {
	if t == ExamTypePreBoard {
		return "Pre-Board"
	}
	return "Board"
}

// ResultStatus is the derived pass/fail outcome of a subject result.
type ResultStatus string

const (
	ResultPass ResultStatus = "pass"
	ResultFail ResultStatus = "fail"
)

// StatusFor derives the status for marks against a pass threshold. Equal marks pass.
func StatusFor(marks, passMarks float64) ResultStatus {
	if marks >= passMarks {
		return ResultPass
	}
	return ResultFail
}

// ExamKey identifies the single result record a student has per course, semester and exam type.
type ExamKey struct {
	StudentID string
	CourseID  string
	Semester  int
	ExamType  ExamType
}

// ExamResult stores one student's marks for a semester sitting.
type ExamResult struct {
	ID         string          `db:"id" json:"id"`
	StudentID  string          `db:"student_id" json:"studentId"`
	CourseID   string          `db:"course_id" json:"courseId"`
	Semester   int             `db:"semester" json:"semester"`
	ExamType   ExamType        `db:"exam_type" json:"examType"`
	TotalMarks float64         `db:"total_marks" json:"totalMarks"`
	Percentage float64         `db:"percentage" json:"percentage"`
	GPA        float64         `db:"gpa" json:"gpa"`
	Remarks    string          `db:"remarks" json:"remarks"`
	Revision   int             `db:"revision" json:"revision"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`
	Results    []SubjectResult `db:"-" json:"results"`
	Course     *CourseSummary  `db:"-" json:"course,omitempty"`
}

// SubjectResult is the mark obtained in one subject.
type SubjectResult struct {
	ID            string       `db:"id" json:"id"`
	ExamResultID  string       `db:"exam_result_id" json:"-"`
	Subject       string       `db:"subject" json:"subject"`
	MarksObtained float64      `db:"marks_obtained" json:"marksObtained"`
	FullMarks     float64      `db:"full_marks" json:"fullMarks"`
	PassMarks     float64      `db:"pass_marks" json:"passMarks"`
	Status        ResultStatus `db:"status" json:"status"`
}

// Key returns the uniqueness key of the record.
func (r *ExamResult) Key() ExamKey {
	return ExamKey{StudentID: r.StudentID, CourseID: r.CourseID, Semester: r.Semester, ExamType: r.ExamType}
}

// Entry returns the result for subject, or nil.
func (r *ExamResult) Entry(subject string) *SubjectResult {
	for i := range r.Results {
		if r.Results[i].Subject == subject {
			return &r.Results[i]
		}
	}
	return nil
}

// SetMarks writes marks for subject, adding the entry when missing, and refreshes the summary.
// Values are rounded to the stored precision before the status is derived.
func (r *ExamResult) SetMarks(subject string, marks, fullMarks, passMarks float64) *SubjectResult {
	entry := r.Entry(subject)
	if entry == nil {
		r.Results = append(r.Results, SubjectResult{Subject: subject})
		entry = &r.Results[len(r.Results)-1]
	}
	entry.MarksObtained = RoundMarks(marks)
	entry.FullMarks = RoundMarks(fullMarks)
	entry.PassMarks = RoundMarks(passMarks)
	entry.Status = StatusFor(entry.MarksObtained, entry.PassMarks)
	r.Recalculate()
	return r.Entry(subject)
}

// Recalculate derives total, percentage, GPA and remarks from the entries.
// GPA is the percentage divided by 25.
func (r *ExamResult) Recalculate() {
	if len(r.Results) == 0 {
		r.TotalMarks, r.Percentage, r.GPA, r.Remarks = 0, 0, 0, ""
		return
	}
	var total, full float64
	passed := true
	for _, entry := range r.Results {
		total += entry.MarksObtained
		full += entry.FullMarks
		if entry.Status != ResultPass {
			passed = false
		}
	}
	r.TotalMarks = RoundMarks(total)
	if full > 0 {
		r.Percentage = Round(total/full*100, 2)
	} else {
		r.Percentage = 0
	}
	r.GPA = Round(r.Percentage/25, 2)
	if passed {
		r.Remarks = "Pass"
	} else {
		r.Remarks = "Fail"
	}
}

// SubjectMarksFilter selects the records that hold marks for one subject.
type SubjectMarksFilter struct {
	CourseID string
	Semester int
	ExamType ExamType
	Subject  string
}

// SubjectMark is one student's entry for a subject.
type SubjectMark struct {
	StudentID     string       `db:"student_id" json:"studentId"`
	StudentName   string       `db:"student_name" json:"studentName"`
	StudentEmail  string       `db:"student_email" json:"studentEmail"`
	MarksObtained float64      `db:"marks_obtained" json:"marksObtained"`
	FullMarks     float64      `db:"full_marks" json:"fullMarks"`
	PassMarks     float64      `db:"pass_marks" json:"passMarks"`
	Status        ResultStatus `db:"status" json:"status"`
}

// MarksScale is the number of decimals a mark is stored with.
const MarksScale = 2

// RoundMarks rounds a mark to its stored precision.
func RoundMarks(v float64) float64 {
	return Round(v, MarksScale)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
