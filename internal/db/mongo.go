package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Joseda-hg/todoserver/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	tasksCollection = "todos"
)

// MongoStore keeps users and tasks as documents. Each user document embeds
// the ordered list of its task ids.
type MongoStore struct {
	Client *mongo.Client
	Users  *mongo.Collection
	Tasks  *mongo.Collection
	Now    func() time.Time
}

var _ Store = (*MongoStore)(nil)

type userDocument struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	Name      string               `bson:"name"`
	Email     string               `bson:"email"`
	Password  string               `bson:"password"`
	Todos     []primitive.ObjectID `bson:"todos"`
	CreatedAt time.Time            `bson:"createdAt"`
}

type taskDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Category  string             `bson:"category"`
	Status    string             `bson:"status"`
	DueDate   string             `bson:"dueDate"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// ConnectMongo dials uri, verifies the connection and makes sure the
// collection indexes exist.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	store := NewMongoStore(client, database)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return store, nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		Client: client,
		Users:  db.Collection(usersCollection),
		Tasks:  db.Collection(tasksCollection),
		Now:    time.Now,
	}
}

// EnsureIndexes creates the unique email index and the reverse lookup index
// on users.todos.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.Users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "todos", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *MongoStore) CreateUser(ctx context.Context, input UserInput) (model.User, error) {
	if err := input.validate(); err != nil {
		return model.User{}, err
	}

	doc := userDocument{
		ID:        primitive.NewObjectID(),
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.PasswordHash,
		Todos:     []primitive.ObjectID{},
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.Users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return mapUser(doc), nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID string) (model.User, error) {
	doc, err := s.findUserByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return mapUser(doc), nil
}

func (s *MongoStore) FindUserByEmail(ctx context.Context, email string) (model.User, error) {
	doc, err := s.findUser(ctx, bson.M{"email": email})
	if err != nil {
		return model.User{}, err
	}
	return mapUser(doc), nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (userDocument, error) {
	var doc userDocument
	if err := s.Users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return userDocument{}, ErrNotFound
		}
		return userDocument{}, fmt.Errorf("find user: %w", err)
	}
	return doc, nil
}

func (s *MongoStore) findUserByID(ctx context.Context, userID string) (userDocument, error) {
	uid, err := parseObjectID(userID)
	if err != nil {
		return userDocument{}, err
	}
	return s.findUser(ctx, bson.M{"_id": uid})
}

// CreateTask inserts the task and pushes its id onto the owner's list. If the
// push does not land, the inserted task is removed again.
func (s *MongoStore) CreateTask(ctx context.Context, userID string, input TaskInput) (model.Task, error) {
	if err := input.validate(); err != nil {
		return model.Task{}, err
	}

	user, err := s.findUserByID(ctx, userID)
	if err != nil {
		return model.Task{}, err
	}

	doc := taskToDocument(newTask("", input, s.now()))
	doc.ID = primitive.NewObjectID()
	if _, err := s.Tasks.InsertOne(ctx, doc); err != nil {
		return model.Task{}, fmt.Errorf("insert task: %w", err)
	}

	result, err := s.Users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$push": bson.M{"todos": doc.ID}})
	if err == nil && result.MatchedCount == 0 {
		err = ErrNotFound
	}
	if err != nil {
		if _, delErr := s.Tasks.DeleteOne(ctx, bson.M{"_id": doc.ID}); delErr != nil {
			return model.Task{}, fmt.Errorf("push task reference: %w (compensating delete: %v)", err, delErr)
		}
		if errors.Is(err, ErrNotFound) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, fmt.Errorf("push task reference: %w", err)
	}

	return mapTask(doc), nil
}

func (s *MongoStore) GetTask(ctx context.Context, taskID string) (model.Task, error) {
	tid, err := parseObjectID(taskID)
	if err != nil {
		return model.Task{}, err
	}

	var doc taskDocument
	if err := s.Tasks.FindOne(ctx, bson.M{"_id": tid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, fmt.Errorf("find task: %w", err)
	}
	return mapTask(doc), nil
}

func (s *MongoStore) ListUserTasks(ctx context.Context, userID string) ([]model.Task, error) {
	user, err := s.findUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Todos) == 0 {
		return []model.Task{}, nil
	}

	docs, err := s.findTasks(ctx, bson.M{"_id": bson.M{"$in": user.Todos}})
	if err != nil {
		return nil, err
	}
	return orderByRefs(user.Todos, docs), nil
}

func (s *MongoStore) CompleteTask(ctx context.Context, taskID string) (model.Task, error) {
	tid, err := parseObjectID(taskID)
	if err != nil {
		return model.Task{}, err
	}

	var doc taskDocument
	err = s.Tasks.FindOneAndUpdate(ctx,
		bson.M{"_id": tid},
		bson.M{"$set": bson.M{"status": string(model.StatusCompleted)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Task{}, ErrNotFound
		}
		return model.Task{}, fmt.Errorf("complete task: %w", err)
	}
	return mapTask(doc), nil
}

func (s *MongoStore) ListCompletedTasks(ctx context.Context, userID string, day time.Time) ([]model.Task, error) {
	user, err := s.findUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.Todos) == 0 {
		return []model.Task{}, nil
	}

	start, end := dayBounds(day)
	docs, err := s.findTasks(ctx, completedFilter(user.Todos, start, end))
	if err != nil {
		return nil, err
	}
	return orderByRefs(user.Todos, docs), nil
}

func (s *MongoStore) CountTasks(ctx context.Context, userID string) (model.TaskCounts, error) {
	user, err := s.findUserByID(ctx, userID)
	if err != nil {
		return model.TaskCounts{}, err
	}

	completed, err := s.Tasks.CountDocuments(ctx, statusFilter(user.Todos, model.StatusCompleted))
	if err != nil {
		return model.TaskCounts{}, fmt.Errorf("count completed tasks: %w", err)
	}
	pending, err := s.Tasks.CountDocuments(ctx, statusFilter(user.Todos, model.StatusPending))
	if err != nil {
		return model.TaskCounts{}, fmt.Errorf("count pending tasks: %w", err)
	}
	return model.TaskCounts{Completed: completed, Pending: pending}, nil
}

// DeleteTask pulls the id from every user list before deleting the task, so a
// retry after a failed delete finishes the job instead of leaving a dangling
// reference.
func (s *MongoStore) DeleteTask(ctx context.Context, taskID string) error {
	tid, err := parseObjectID(taskID)
	if err != nil {
		return err
	}

	if _, err := s.Users.UpdateMany(ctx, bson.M{"todos": tid}, bson.M{"$pull": bson.M{"todos": tid}}); err != nil {
		return fmt.Errorf("pull task reference: %w", err)
	}

	result, err := s.Tasks.DeleteOne(ctx, bson.M{"_id": tid})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteAllTasks(ctx context.Context, userID string) (int64, error) {
	user, err := s.findUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(user.Todos) == 0 {
		return 0, nil
	}

	result, err := s.Tasks.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": user.Todos}})
	if err != nil {
		return 0, fmt.Errorf("delete tasks: %w", err)
	}

	// Only the ids read above are pulled; tasks pushed meanwhile stay listed.
	if _, err := s.Users.UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$pull": bson.M{"todos": bson.M{"$in": user.Todos}}},
	); err != nil {
		return result.DeletedCount, fmt.Errorf("clear task references: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

func (s *MongoStore) findTasks(ctx context.Context, filter bson.M) ([]taskDocument, error) {
	cursor, err := s.Tasks.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return docs, nil
}

func completedFilter(ids []primitive.ObjectID, start, end time.Time) bson.M {
	filter := statusFilter(ids, model.StatusCompleted)
	filter["createdAt"] = bson.M{"$gte": start, "$lt": end}
	return filter
}

func statusFilter(ids []primitive.ObjectID, status model.TaskStatus) bson.M {
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	return bson.M{
		"_id":    bson.M{"$in": ids},
		"status": string(status),
	}
}

// orderByRefs returns docs in the order of refs, skipping ids with no
// matching document.
func orderByRefs(refs []primitive.ObjectID, docs []taskDocument) []model.Task {
	byID := make(map[primitive.ObjectID]taskDocument, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	tasks := make([]model.Task, 0, len(docs))
	for _, ref := range refs {
		if doc, ok := byID[ref]; ok {
			tasks = append(tasks, mapTask(doc))
		}
	}
	return tasks
}

// parseObjectID maps malformed ids to ErrNotFound; no document can have them.
func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrNotFound
	}
	return oid, nil
}

func mapUser(doc userDocument) model.User {
	todos := make([]string, 0, len(doc.Todos))
	for _, id := range doc.Todos {
		todos = append(todos, id.Hex())
	}
	return model.User{
		ID:        doc.ID.Hex(),
		Name:      doc.Name,
		Email:     doc.Email,
		Password:  doc.Password,
		Todos:     todos,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}

func mapTask(doc taskDocument) model.Task {
	return model.Task{
		ID:        doc.ID.Hex(),
		Title:     doc.Title,
		Category:  doc.Category,
		Status:    normalizeStatus(doc.Status),
		DueDate:   doc.DueDate,
		CreatedAt: doc.CreatedAt.UTC(),
	}
}

func taskToDocument(task model.Task) taskDocument {
	return taskDocument{
		Title:     task.Title,
		Category:  task.Category,
		Status:    string(task.Status),
		DueDate:   task.DueDate,
		CreatedAt: task.CreatedAt,
	}
}
