package models

import "time"

// Path is a top-level learning track grouping modules.
type Path struct {
	ID          string    `db:"id" json:"id"`
	Slug        string    `db:"slug" json:"slug"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Published   bool      `db:"published" json:"published"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Module is a course-like content unit inside a path. Teachers are linked via
// the module_teachers relation, students via enrollments.
type Module struct {
	ID          string    `db:"id" json:"id"`
	PathID      string    `db:"path_id" json:"path_id"`
	Slug        string    `db:"slug" json:"slug"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Position    int       `db:"position" json:"position"`
	Published   bool      `db:"published" json:"published"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ModuleTeacher links a teacher to a module.
type ModuleTeacher struct {
	ModuleID  string    `db:"module_id" json:"module_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ModuleTeacherDetail enriches the assignment with contact fields used in
// enrollment webhook payloads.
type ModuleTeacherDetail struct {
	UserID   string `db:"user_id" json:"userId"`
	FullName string `db:"full_name" json:"fullName"`
	Email    string `db:"email" json:"email"`
}

// PathFilter provides filters for listing paths.
type PathFilter struct {
	Published *bool
	Search    string
	Page      int
	PageSize  int
}
