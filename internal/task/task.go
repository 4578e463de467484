package task

import "time"

type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the task has reached a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one download tracked by the registry. Progress is a percentage in
// [0, 100]; it equals 100 only for completed tasks, and a failed task keeps
// the last value the worker reported. Status is authoritative over Progress
// for deciding completion.
type Task struct {
	ID         string
	URL        string
	Title      string
	Progress   int
	Status     Status
	ResultPath string
	Err        string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
