package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Joseda-hg/todoserver/internal/model"
)

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	first, err := store.CreateUser(context.Background(), UserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected user ID to be set")
	}
	if len(first.Todos) != 0 {
		t.Fatalf("expected empty task list, got %v", first.Todos)
	}

	_, err = store.CreateUser(context.Background(), UserInput{Name: "Ana 2", Email: "ana@example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	found, err := store.FindUserByEmail(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if found.ID != first.ID || found.Password != "hash" {
		t.Fatalf("unexpected user %+v", found)
	}
}

func TestCreateUserRequiresFields(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	_, err := store.CreateUser(context.Background(), UserInput{Email: "x@example.com", PasswordHash: "hash"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestCreateTaskAppendsReferenceInOrder(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	user := mustCreateUser(t, store, "ana@example.com")
	first, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Buy milk", Category: "Shopping"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if first.Status != model.StatusPending {
		t.Fatalf("expected pending status, got %q", first.Status)
	}
	if first.DueDate != now.Local().Format(model.DateLayout) {
		t.Fatalf("expected due date of creation day, got %q", first.DueDate)
	}
	second, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Write report", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	reloaded, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(reloaded.Todos) != 2 || reloaded.Todos[0] != first.ID || reloaded.Todos[1] != second.ID {
		t.Fatalf("unexpected task references %v", reloaded.Todos)
	}

	tasks, err := store.ListUserTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "Buy milk" || tasks[1].Title != "Write report" {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
}

func TestCreateTaskForUnknownUserDoesNotPersist(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	_, err := store.CreateTask(context.Background(), "missing", TaskInput{Title: "Orphan", Category: "None"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var count int
	if err := store.DB.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count); err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no tasks to be stored, got %d", count)
	}
}

func TestCompleteTaskIsIdempotent(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "ana@example.com")
	task, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Call mom", Category: "Family"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	for i := 0; i < 2; i++ {
		completed, err := store.CompleteTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("complete task (attempt %d): %v", i+1, err)
		}
		if completed.Status != model.StatusCompleted {
			t.Fatalf("expected completed status, got %q", completed.Status)
		}
	}

	if _, err := store.CompleteTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCompletedTasksByDateAndCounts(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "ana@example.com")

	store.Now = func() time.Time { return time.Date(2024, 1, 4, 23, 0, 0, 0, time.UTC) }
	t1, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "T1", Category: "Work"})
	if err != nil {
		t.Fatalf("create t1: %v", err)
	}
	store.Now = func() time.Time { return time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC) }
	t2, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "T2", Category: "Work"})
	if err != nil {
		t.Fatalf("create t2: %v", err)
	}
	if _, err := store.CompleteTask(ctx, t2.ID); err != nil {
		t.Fatalf("complete t2: %v", err)
	}

	day, _ := time.Parse(model.DateLayout, "2024-01-05")
	completed, err := store.ListCompletedTasks(ctx, user.ID, day)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != t2.ID {
		t.Fatalf("expected [T2], got %+v", completed)
	}

	if _, err := store.CompleteTask(ctx, t1.ID); err != nil {
		t.Fatalf("complete t1: %v", err)
	}
	completed, err = store.ListCompletedTasks(ctx, user.ID, day)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected task created on another day to be excluded, got %d tasks", len(completed))
	}

	counts, err := store.CountTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if counts.Completed != 2 || counts.Pending != 0 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	if _, err := store.CountTasks(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTaskRemovesReference(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "ana@example.com")
	keep, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Keep", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	drop, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Drop", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := store.DeleteTask(ctx, drop.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := store.GetTask(ctx, drop.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}

	reloaded, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(reloaded.Todos) != 1 || reloaded.Todos[0] != keep.ID {
		t.Fatalf("unexpected task references %v", reloaded.Todos)
	}

	if err := store.DeleteTask(ctx, drop.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteAllTasksClearsList(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()
	ctx := context.Background()

	user := mustCreateUser(t, store, "ana@example.com")
	other := mustCreateUser(t, store, "bea@example.com")
	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		task, err := store.CreateTask(ctx, user.ID, TaskInput{Title: title, Category: "Work"})
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		ids = append(ids, task.ID)
	}
	otherTask, err := store.CreateTask(ctx, other.ID, TaskInput{Title: "Other", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	deleted, err := store.DeleteAllTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted tasks, got %d", deleted)
	}

	reloaded, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(reloaded.Todos) != 0 {
		t.Fatalf("expected empty task list, got %v", reloaded.Todos)
	}
	for _, id := range ids {
		if _, err := store.GetTask(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected task %s to be gone, got %v", id, err)
		}
	}
	if _, err := store.GetTask(ctx, otherTask.ID); err != nil {
		t.Fatalf("expected other user's task to survive: %v", err)
	}

	if _, err := store.DeleteAllTasks(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDayBoundsUsesUTC(t *testing.T) {
	day := time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)
	start, end := dayBounds(day)
	if !start.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Fatalf("expected a 24h window, got %v", end.Sub(start))
	}
}

func mustCreateUser(t *testing.T, store *SQLStore, email string) model.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), UserInput{Name: "Test", Email: email, PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func newTestStore(t *testing.T) (*SQLStore, func()) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return NewSQLStore(db), func() {
		_ = db.Close()
	}
}
