package models

import "time"

// QuestionStatus tracks whether a private question was answered.
type QuestionStatus string

const (
	QuestionStatusOpen     QuestionStatus = "open"
	QuestionStatusAnswered QuestionStatus = "answered"
)

// ValidQuestionStatus reports whether the status is in the closed set.
func ValidQuestionStatus(s QuestionStatus) bool {
	return s == QuestionStatusOpen || s == QuestionStatusAnswered
}

// Question is a private question a student asks within a module.
type Question struct {
	ID         string         `db:"id" json:"id"`
	StudentID  string         `db:"student_id" json:"student_id"`
	ModuleID   string         `db:"module_id" json:"module_id"`
	Body       string         `db:"body" json:"body"`
	Status     QuestionStatus `db:"status" json:"status"`
	Answer     string         `db:"answer" json:"answer,omitempty"`
	AnsweredBy *string        `db:"answered_by" json:"answered_by,omitempty"`
	AnsweredAt *time.Time     `db:"answered_at" json:"answered_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// QuestionFilter provides filters for listing questions.
type QuestionFilter struct {
	StudentID string
	ModuleID  string
	Status    QuestionStatus
	Page      int
	PageSize  int
}
