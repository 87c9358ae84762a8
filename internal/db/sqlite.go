package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/todoserver/internal/model"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLStore keeps users and tasks in SQLite. The per-user task list lives in
// user_tasks, ordered by position.
type SQLStore struct {
	DB  *sql.DB
	Now func() time.Time
}

var _ Store = (*SQLStore)(nil)

const taskColumns = "t.id, t.title, t.category, t.status, t.due_date, t.created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db, Now: time.Now}
}

func (s *SQLStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *SQLStore) CreateUser(ctx context.Context, input UserInput) (model.User, error) {
	if err := input.validate(); err != nil {
		return model.User{}, err
	}

	user := model.User{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.PasswordHash,
		Todos:     []string{},
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password, created_at) VALUES (?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.Password, user.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (s *SQLStore) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT id, name, email, password, created_at FROM users WHERE id = ?", userID)
	return s.loadUser(ctx, row)
}

func (s *SQLStore) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT id, name, email, password, created_at FROM users WHERE email = ?", email)
	return s.loadUser(ctx, row)
}

func (s *SQLStore) loadUser(ctx context.Context, row rowScanner) (model.User, error) {
	var user model.User
	var createdAt int64
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("load user: %w", err)
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()

	rows, err := s.DB.QueryContext(ctx, "SELECT task_id FROM user_tasks WHERE user_id = ? ORDER BY position", user.ID)
	if err != nil {
		return model.User{}, fmt.Errorf("load task references: %w", err)
	}
	defer rows.Close()

	user.Todos = []string{}
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			return model.User{}, err
		}
		user.Todos = append(user.Todos, taskID)
	}
	return user, rows.Err()
}

func (s *SQLStore) CreateTask(ctx context.Context, userID string, input TaskInput) (model.Task, error) {
	if err := input.validate(); err != nil {
		return model.Task{}, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := userExists(ctx, tx, userID); err != nil {
		return model.Task{}, err
	}

	task := newTask(uuid.NewString(), input, s.now())
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO tasks (id, title, category, status, due_date, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		task.ID, task.Title, task.Category, string(task.Status), task.DueDate, task.CreatedAt.UnixMilli()); err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_tasks (user_id, task_id, position)
		 SELECT ?, ?, COALESCE(MAX(position), 0) + 1 FROM user_tasks WHERE user_id = ?`,
		userID, task.ID, userID); err != nil {
		return model.Task{}, fmt.Errorf("push task reference: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (s *SQLStore) GetTask(ctx context.Context, taskID string) (model.Task, error) {
	row := s.DB.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks t WHERE t.id = ?", taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, ErrNotFound
	}
	return task, err
}

func (s *SQLStore) ListUserTasks(ctx context.Context, userID string) ([]model.Task, error) {
	if err := userExists(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	return queryTasks(ctx, s.DB,
		"SELECT "+taskColumns+" FROM user_tasks ut JOIN tasks t ON t.id = ut.task_id WHERE ut.user_id = ? ORDER BY ut.position",
		userID)
}

func (s *SQLStore) CompleteTask(ctx context.Context, taskID string) (model.Task, error) {
	result, err := s.DB.ExecContext(ctx, "UPDATE tasks SET status = ? WHERE id = ?", string(model.StatusCompleted), taskID)
	if err != nil {
		return model.Task{}, fmt.Errorf("complete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Task{}, err
	}
	if affected == 0 {
		return model.Task{}, ErrNotFound
	}
	return s.GetTask(ctx, taskID)
}

func (s *SQLStore) ListCompletedTasks(ctx context.Context, userID string, day time.Time) ([]model.Task, error) {
	if err := userExists(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	start, end := dayBounds(day)
	return queryTasks(ctx, s.DB,
		`SELECT `+taskColumns+` FROM user_tasks ut JOIN tasks t ON t.id = ut.task_id
		 WHERE ut.user_id = ? AND t.status = ? AND t.created_at >= ? AND t.created_at < ?
		 ORDER BY ut.position`,
		userID, string(model.StatusCompleted), start.UnixMilli(), end.UnixMilli())
}

func (s *SQLStore) CountTasks(ctx context.Context, userID string) (model.TaskCounts, error) {
	if err := userExists(ctx, s.DB, userID); err != nil {
		return model.TaskCounts{}, err
	}

	const countQuery = "SELECT COUNT(*) FROM user_tasks ut JOIN tasks t ON t.id = ut.task_id WHERE ut.user_id = ? AND t.status = ?"

	var counts model.TaskCounts
	if err := s.DB.QueryRowContext(ctx, countQuery, userID, string(model.StatusCompleted)).Scan(&counts.Completed); err != nil {
		return model.TaskCounts{}, fmt.Errorf("count completed tasks: %w", err)
	}
	if err := s.DB.QueryRowContext(ctx, countQuery, userID, string(model.StatusPending)).Scan(&counts.Pending); err != nil {
		return model.TaskCounts{}, fmt.Errorf("count pending tasks: %w", err)
	}
	return counts, nil
}

func (s *SQLStore) DeleteTask(ctx context.Context, taskID string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_tasks WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("pull task reference: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (s *SQLStore) DeleteAllTasks(ctx context.Context, userID string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := userExists(ctx, tx, userID); err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id IN (SELECT task_id FROM user_tasks WHERE user_id = ?)", userID)
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_tasks WHERE user_id = ?", userID); err != nil {
		return 0, fmt.Errorf("clear task references: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

func (s *SQLStore) Close(context.Context) error {
	return s.DB.Close()
}

func userExists(ctx context.Context, q queryer, userID string) error {
	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	return nil
}

func queryTasks(ctx context.Context, q queryer, query string, args ...any) ([]model.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (model.Task, error) {
	var task model.Task
	var status string
	var createdAt int64
	if err := row.Scan(&task.ID, &task.Title, &task.Category, &status, &task.DueDate, &createdAt); err != nil {
		return model.Task{}, err
	}
	task.Status = normalizeStatus(status)
	task.CreatedAt = time.UnixMilli(createdAt).UTC()
	return task, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(sqliteErr.Error(), "UNIQUE")
}
