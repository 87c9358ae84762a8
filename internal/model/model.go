package model

import "time"

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// DateLayout is the calendar date format used by Task.DueDate and date routes.
const DateLayout = "2006-01-02"

type User struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Todos     []string  `json:"todos"`
	CreatedAt time.Time `json:"createdAt"`
}

type Task struct {
	ID        string     `json:"_id"`
	Title     string     `json:"title"`
	Category  string     `json:"category"`
	Status    TaskStatus `json:"status"`
	DueDate   string     `json:"dueDate"`
	CreatedAt time.Time  `json:"createdAt"`
}

type TaskCounts struct {
	Completed int64 `json:"totalCompletedTodos"`
	Pending   int64 `json:"totalPendingTodos"`
}
