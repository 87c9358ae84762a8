package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/Joseda-hg/todoserver/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseObjectIDMapsMalformedToNotFound(t *testing.T) {
	if _, err := parseObjectID("not-an-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	id := primitive.NewObjectID()
	parsed, err := parseObjectID(id.Hex())
	if err != nil {
		t.Fatalf("parse object id: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %s, got %s", id.Hex(), parsed.Hex())
	}
}

func TestOrderByRefsFollowsListOrder(t *testing.T) {
	a, b, c := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()
	docs := []taskDocument{
		{ID: c, Title: "C", Status: "pending"},
		{ID: a, Title: "A", Status: "completed"},
	}

	tasks := orderByRefs([]primitive.ObjectID{a, b, c}, docs)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "A" || tasks[1].Title != "C" {
		t.Fatalf("unexpected order %q, %q", tasks[0].Title, tasks[1].Title)
	}
	if tasks[0].Status != model.StatusCompleted {
		t.Fatalf("expected completed status, got %q", tasks[0].Status)
	}
}

func TestCompletedFilterScopesToRefsAndDay(t *testing.T) {
	ids := []primitive.ObjectID{primitive.NewObjectID()}
	start, end := dayBounds(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))

	filter := completedFilter(ids, start, end)
	if filter["status"] != "completed" {
		t.Fatalf("unexpected status filter %v", filter["status"])
	}
	in, ok := filter["_id"].(bson.M)
	if !ok {
		t.Fatalf("expected _id filter, got %T", filter["_id"])
	}
	if got := in["$in"].([]primitive.ObjectID); len(got) != 1 || got[0] != ids[0] {
		t.Fatalf("unexpected $in %v", got)
	}
	created, ok := filter["createdAt"].(bson.M)
	if !ok {
		t.Fatalf("expected createdAt filter, got %T", filter["createdAt"])
	}
	if !created["$gte"].(time.Time).Equal(start) || !created["$lt"].(time.Time).Equal(end) {
		t.Fatalf("unexpected createdAt window %v", created)
	}
}

func TestStatusFilterWithNoRefsMatchesNothing(t *testing.T) {
	filter := statusFilter(nil, model.StatusPending)
	in := filter["_id"].(bson.M)["$in"].([]primitive.ObjectID)
	if in == nil || len(in) != 0 {
		t.Fatalf("expected empty non-nil $in list, got %#v", in)
	}
}

// TestMongoStoreRoundTrip runs against a live server when MONGODB_TEST_URI is set.
func TestMongoStoreRoundTrip(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database := fmt.Sprintf("todoserver_test_%d", time.Now().UnixNano())
	store, err := ConnectMongo(ctx, uri, database)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer func() {
		_ = store.Client.Database(database).Drop(context.Background())
		_ = store.Close(context.Background())
	}()

	now := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }

	user, err := store.CreateUser(ctx, UserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, UserInput{Name: "Ana", Email: "ana@example.com", PasswordHash: "hash"}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	task, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Buy milk", Category: "Shopping"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	second, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Write report", Category: "Work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := store.CreateTask(ctx, primitive.NewObjectID().Hex(), TaskInput{Title: "x", Category: "y"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	listed, err := store.ListUserTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != task.ID || listed[1].ID != second.ID {
		t.Fatalf("unexpected task order %+v", listed)
	}

	if _, err := store.CompleteTask(ctx, task.ID); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	counts, err := store.CountTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("count tasks: %v", err)
	}
	if counts.Completed != 1 || counts.Pending != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}

	completed, err := store.ListCompletedTasks(ctx, user.ID, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list completed tasks: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != task.ID {
		t.Fatalf("unexpected completed tasks %+v", completed)
	}
	otherDay, err := store.ListCompletedTasks(ctx, user.ID, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list completed tasks: %v", err)
	}
	if len(otherDay) != 0 {
		t.Fatalf("expected no completed tasks on another day, got %+v", otherDay)
	}

	if err := store.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	reloaded, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(reloaded.Todos) != 1 || reloaded.Todos[0] != second.ID {
		t.Fatalf("expected only the second task listed, got %v", reloaded.Todos)
	}

	if _, err := store.CreateTask(ctx, user.ID, TaskInput{Title: "Call bank", Category: "Home"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	deleted, err := store.DeleteAllTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("delete all tasks: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted tasks, got %d", deleted)
	}
	remaining, err := store.ListUserTasks(ctx, user.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty task list, got %+v", remaining)
	}
	if _, err := store.GetTask(ctx, second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted task to be gone, got %v", err)
	}
}
