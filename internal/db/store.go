package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/todoserver/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrMissingField   = errors.New("missing required field")
)

// Store is the persistence contract shared by the Mongo and SQLite backends.
//
// A user's task list is the source of truth for ownership. CreateTask and
// DeleteTask apply the task document and the reference list change together,
// so a task is never listed by a user after it is gone.
type Store interface {
	CreateUser(ctx context.Context, input UserInput) (model.User, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	FindUserByEmail(ctx context.Context, email string) (model.User, error)

	CreateTask(ctx context.Context, userID string, input TaskInput) (model.Task, error)
	GetTask(ctx context.Context, taskID string) (model.Task, error)
	ListUserTasks(ctx context.Context, userID string) ([]model.Task, error)
	CompleteTask(ctx context.Context, taskID string) (model.Task, error)
	ListCompletedTasks(ctx context.Context, userID string, day time.Time) ([]model.Task, error)
	CountTasks(ctx context.Context, userID string) (model.TaskCounts, error)
	DeleteTask(ctx context.Context, taskID string) error
	DeleteAllTasks(ctx context.Context, userID string) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type UserInput struct {
	Name string
	// Email is stored as given; uniqueness is exact-match.
	Email        string
	PasswordHash string
}

type TaskInput struct {
	Title    string
	Category string
}

func (in UserInput) validate() error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if err := required("email", in.Email); err != nil {
		return err
	}
	return required("password", in.PasswordHash)
}

func (in TaskInput) validate() error {
	if err := required("title", in.Title); err != nil {
		return err
	}
	return required("category", in.Category)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}

// newTask builds a pending task stamped with now. DueDate is the local
// calendar date of creation.
func newTask(id string, input TaskInput, now time.Time) model.Task {
	return model.Task{
		ID:        id,
		Title:     input.Title,
		Category:  input.Category,
		Status:    model.StatusPending,
		DueDate:   now.Local().Format(model.DateLayout),
		CreatedAt: now.UTC().Truncate(time.Millisecond),
	}
}

// dayBounds returns the UTC half-open interval [start, end) covering day.
func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func normalizeStatus(status string) model.TaskStatus {
	value := strings.TrimSpace(strings.ToLower(status))
	if value == string(model.StatusCompleted) {
		return model.StatusCompleted
	}
	return model.StatusPending
}
