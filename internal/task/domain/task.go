package domain

import (
	"errors"
	"time"
)

// Task is a unit of work within a project.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Status      string
	DueDate     *time.Time
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Task statuses.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
)

// ValidStatus reports whether status is a known task status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Validate validates the task for persistence.
func (t *Task) Validate() error {
	if t.Title == "" {
		return errors.New("task title is required")
	}
	if t.ProjectID == "" {
		return errors.New("task project is required")
	}
	if !ValidStatus(t.Status) {
		return errors.New("invalid task status")
	}
	return nil
}
