// Package mongostore implements the store.Store contract on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"studypad/backend/internal/models"
	"studypad/backend/internal/store"
)

const (
	collCourses       = "courses"
	collFolders       = "folders"
	collNotes         = "notes"
	collMCQuestions   = "mcQuestions"
	collUsers         = "users"
	collNotifications = "notifications"
)

type MongoStore struct {
	db  *mongo.Database
	log *zap.SugaredLogger
}

func New(client *mongo.Client, dbName string, log *zap.SugaredLogger) *MongoStore {
	return &MongoStore{
		db:  client.Database(dbName),
		log: log.With("component", "mongostore"),
	}
}

func (s *MongoStore) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func wrapErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// --- Users ---

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.coll(collUsers).InsertOne(ctx, u); err != nil {
		return wrapErr("create user", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.coll(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, wrapErr("get user", err)
	}
	return &u, nil
}

func (s *MongoStore) UpdateUserSettings(ctx context.Context, userID string, set models.Settings) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$set": bson.M{"settings": set}}, "update user settings")
}

func (s *MongoStore) UpdateUserStreak(ctx context.Context, userID string, st models.Streak) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$set": bson.M{"streak": st}}, "update user streak")
}

func (s *MongoStore) AppendQuizRecord(ctx context.Context, userID string, rec models.QuizRecord) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$push": bson.M{"quizzes": rec}}, "append quiz record")
}

func (s *MongoStore) AddCourseToUser(ctx context.Context, userID, courseID string) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$addToSet": bson.M{"courses": courseID}}, "add course to user")
}

func (s *MongoStore) RemoveCourseFromUser(ctx context.Context, userID, courseID string) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$pull": bson.M{"courses": courseID}}, "remove course from user")
}

func (s *MongoStore) AddNotificationToUser(ctx context.Context, userID, notificationID string) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$addToSet": bson.M{"notifications": notificationID}}, "add notification to user")
}

func (s *MongoStore) RemoveNotificationFromUser(ctx context.Context, userID, notificationID string) error {
	return s.updateOne(ctx, collUsers, userID, bson.M{"$pull": bson.M{"notifications": notificationID}}, "remove notification from user")
}

// --- Courses ---

func (s *MongoStore) CreateCourse(ctx context.Context, c *models.Course) error {
	if _, err := s.coll(collCourses).InsertOne(ctx, c); err != nil {
		return wrapErr("create course", err)
	}
	return nil
}

func (s *MongoStore) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var c models.Course
	if err := s.coll(collCourses).FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, wrapErr("get course", err)
	}
	return &c, nil
}

func (s *MongoStore) ListCoursesByUser(ctx context.Context, userID string) ([]models.Course, error) {
	var courses []models.Course
	if err := s.findAll(ctx, collCourses, bson.M{"userId": userID}, &courses); err != nil {
		return nil, wrapErr("list courses", err)
	}
	if courses == nil {
		courses = make([]models.Course, 0)
	}
	return courses, nil
}

func (s *MongoStore) AddFolderToCourse(ctx context.Context, courseID, folderID string) error {
	return s.updateOne(ctx, collCourses, courseID, bson.M{"$addToSet": bson.M{"folders": folderID}}, "add folder to course")
}

func (s *MongoStore) RemoveFolderFromCourse(ctx context.Context, courseID, folderID string) error {
	return s.updateOne(ctx, collCourses, courseID, bson.M{"$pull": bson.M{"folders": folderID}}, "remove folder from course")
}

func (s *MongoStore) AddNoteToCourse(ctx context.Context, courseID, noteID string) error {
	return s.updateOne(ctx, collCourses, courseID, bson.M{"$addToSet": bson.M{"notes": noteID}}, "add note to course")
}

func (s *MongoStore) RemoveNoteFromCourse(ctx context.Context, courseID, noteID string) error {
	return s.updateOne(ctx, collCourses, courseID, bson.M{"$pull": bson.M{"notes": noteID}}, "remove note from course")
}

func (s *MongoStore) DeleteCourse(ctx context.Context, id string) error {
	return s.deleteOne(ctx, collCourses, id, "delete course")
}

// --- Folders ---

func (s *MongoStore) CreateFolder(ctx context.Context, f *models.Folder) error {
	if _, err := s.coll(collFolders).InsertOne(ctx, f); err != nil {
		return wrapErr("create folder", err)
	}
	return nil
}

func (s *MongoStore) GetFolder(ctx context.Context, id string) (*models.Folder, error) {
	var f models.Folder
	if err := s.coll(collFolders).FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		return nil, wrapErr("get folder", err)
	}
	return &f, nil
}

func (s *MongoStore) ListFoldersByCourse(ctx context.Context, courseID string) ([]models.Folder, error) {
	var folders []models.Folder
	if err := s.findAll(ctx, collFolders, bson.M{"courseId": courseID}, &folders); err != nil {
		return nil, wrapErr("list folders", err)
	}
	if folders == nil {
		folders = make([]models.Folder, 0)
	}
	return folders, nil
}

func (s *MongoStore) RenameFolder(ctx context.Context, id, name string) error {
	return s.updateOne(ctx, collFolders, id, bson.M{"$set": bson.M{"folderName": name}}, "rename folder")
}

func (s *MongoStore) AddNoteToFolder(ctx context.Context, folderID, noteID string) error {
	return s.updateOne(ctx, collFolders, folderID, bson.M{"$addToSet": bson.M{"notes": noteID}}, "add note to folder")
}

func (s *MongoStore) RemoveNoteFromFolder(ctx context.Context, folderID, noteID string) error {
	return s.updateOne(ctx, collFolders, folderID, bson.M{"$pull": bson.M{"notes": noteID}}, "remove note from folder")
}

func (s *MongoStore) SetRecentNoteSummary(ctx context.Context, folderID string, sum models.RecentNoteSummary) error {
	return s.updateOne(ctx, collFolders, folderID, bson.M{"$set": bson.M{"recentNoteSummary": sum}}, "set recent note summary")
}

func (s *MongoStore) DeleteFolder(ctx context.Context, id string) error {
	return s.deleteOne(ctx, collFolders, id, "delete folder")
}

// --- Notes ---

func (s *MongoStore) CreateNote(ctx context.Context, n *models.Note) error {
	if _, err := s.coll(collNotes).InsertOne(ctx, n); err != nil {
		return wrapErr("create note", err)
	}
	return nil
}

func (s *MongoStore) GetNote(ctx context.Context, id string) (*models.Note, error) {
	var n models.Note
	if err := s.coll(collNotes).FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrapErr("get note", err)
	}
	return &n, nil
}

func (s *MongoStore) ListNotesByFileLocation(ctx context.Context, fileLocation string) ([]models.Note, error) {
	var notes []models.Note
	if err := s.findAll(ctx, collNotes, bson.M{"fileLocation": fileLocation}, &notes); err != nil {
		return nil, wrapErr("list notes by file location", err)
	}
	if notes == nil {
		notes = make([]models.Note, 0)
	}
	return notes, nil
}

func (s *MongoStore) ListNotesByCourse(ctx context.Context, courseID string) ([]models.Note, error) {
	var notes []models.Note
	if err := s.findAll(ctx, collNotes, bson.M{"courseId": courseID}, &notes); err != nil {
		return nil, wrapErr("list notes by course", err)
	}
	if notes == nil {
		notes = make([]models.Note, 0)
	}
	return notes, nil
}

func (s *MongoStore) ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error) {
	var notes []models.Note
	if err := s.findAll(ctx, collNotes, bson.M{"userId": userID}, &notes); err != nil {
		return nil, wrapErr("list notes by user", err)
	}
	if notes == nil {
		notes = make([]models.Note, 0)
	}
	return notes, nil
}

func (s *MongoStore) UpdateNote(ctx context.Context, n *models.Note) error {
	result, err := s.coll(collNotes).ReplaceOne(ctx, bson.M{"_id": n.ID}, n)
	if err != nil {
		return wrapErr("update note", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) TouchNoteAccess(ctx context.Context, id string) error {
	now := time.Now()
	return s.updateOne(ctx, collNotes, id, bson.M{"$set": bson.M{"lastAccessed": now}}, "touch note access")
}

func (s *MongoStore) SearchFoldersByName(ctx context.Context, userID, query string) ([]models.Folder, error) {
	var folders []models.Folder
	filter := bson.M{
		"userId":     userID,
		"folderName": bson.M{"$regex": query, "$options": "i"},
	}
	if err := s.findAll(ctx, collFolders, filter, &folders); err != nil {
		return nil, wrapErr("search folders", err)
	}
	return folders, nil
}

func (s *MongoStore) SearchNotesByTitle(ctx context.Context, userID, query string) ([]models.Note, error) {
	var notes []models.Note
	filter := bson.M{
		"userId": userID,
		"title":  bson.M{"$regex": query, "$options": "i"},
	}
	if err := s.findAll(ctx, collNotes, filter, &notes); err != nil {
		return nil, wrapErr("search notes", err)
	}
	return notes, nil
}

func (s *MongoStore) DeleteNote(ctx context.Context, id string) error {
	return s.deleteOne(ctx, collNotes, id, "delete note")
}

// --- Incorrect-set ---

func (s *MongoStore) UpsertIncorrectQuestion(ctx context.Context, q *models.MCQuestion) error {
	filter := bson.M{
		"userId":   q.UserID,
		"noteId":   q.NoteID,
		"question": q.Question,
	}
	update := bson.M{
		"$set": bson.M{
			"potentialAnswers": q.PotentialAnswers,
			"correctAnswer":    q.CorrectAnswer,
			"attemptCount":     q.AttemptCount,
			"lastAttemptDate":  q.LastAttemptDate,
		},
		"$setOnInsert": bson.M{"_id": q.ID},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.coll(collMCQuestions).UpdateOne(ctx, filter, update, opts); err != nil {
		return wrapErr("upsert incorrect question", err)
	}
	return nil
}

// RemoveIncorrectQuestion is idempotent: removing an absent question is a no-op.
func (s *MongoStore) RemoveIncorrectQuestion(ctx context.Context, userID, noteID, question string) error {
	filter := bson.M{
		"userId":   userID,
		"noteId":   noteID,
		"question": question,
	}
	if _, err := s.coll(collMCQuestions).DeleteMany(ctx, filter); err != nil {
		return wrapErr("remove incorrect question", err)
	}
	return nil
}

func (s *MongoStore) ListIncorrectQuestions(ctx context.Context, userID, noteID string) ([]models.MCQuestion, error) {
	var questions []models.MCQuestion
	filter := bson.M{"userId": userID, "noteId": noteID}
	opts := options.Find().SetSort(bson.D{{Key: "lastAttemptDate", Value: 1}})
	cursor, err := s.coll(collMCQuestions).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr("list incorrect questions", err)
	}
	defer cursor.Close(ctx)
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, wrapErr("decode incorrect questions", err)
	}
	if questions == nil {
		questions = make([]models.MCQuestion, 0)
	}
	return questions, nil
}

// --- Notifications ---

func (s *MongoStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if _, err := s.coll(collNotifications).InsertOne(ctx, n); err != nil {
		return wrapErr("create notification", err)
	}
	return nil
}

func (s *MongoStore) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := s.coll(collNotifications).FindOne(ctx, bson.M{"_id": id}).Decode(&n); err != nil {
		return nil, wrapErr("get notification", err)
	}
	return &n, nil
}

func (s *MongoStore) ListNotificationsByUser(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	if err := s.findAll(ctx, collNotifications, bson.M{"userId": userID}, &notifications); err != nil {
		return nil, wrapErr("list notifications", err)
	}
	if notifications == nil {
		notifications = make([]models.Notification, 0)
	}
	return notifications, nil
}

func (s *MongoStore) DeleteNotification(ctx context.Context, id string) error {
	return s.deleteOne(ctx, collNotifications, id, "delete notification")
}

// --- Live subscriptions ---

// WatchFolders re-runs the courseId query after every change-stream event on
// the folders collection and pushes the full result. Wholesale snapshot
// replacement keeps subscribers simple; per-course cardinality is small.
func (s *MongoStore) WatchFolders(ctx context.Context, courseID string) (<-chan []models.Folder, error) {
	stream, err := s.coll(collFolders).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, wrapErr("watch folders", err)
	}
	ch := make(chan []models.Folder, 1)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())
		push := func() {
			folders, err := s.ListFoldersByCourse(ctx, courseID)
			if err != nil {
				s.log.Warnw("folder snapshot query failed", "courseId", courseID, "error", err)
				return
			}
			select {
			case ch <- folders:
			case <-ctx.Done():
			}
		}
		push()
		for stream.Next(ctx) {
			push()
		}
	}()
	return ch, nil
}

// WatchDirectNotes behaves like WatchFolders for a course's direct notes
// (fileLocation "{courseID}/").
func (s *MongoStore) WatchDirectNotes(ctx context.Context, courseID string) (<-chan []models.Note, error) {
	stream, err := s.coll(collNotes).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, wrapErr("watch direct notes", err)
	}
	ch := make(chan []models.Note, 1)
	go func() {
		defer close(ch)
		defer stream.Close(context.Background())
		push := func() {
			notes, err := s.ListNotesByFileLocation(ctx, courseID+"/")
			if err != nil {
				s.log.Warnw("note snapshot query failed", "courseId", courseID, "error", err)
				return
			}
			select {
			case ch <- notes:
			case <-ctx.Done():
			}
		}
		push()
		for stream.Next(ctx) {
			push()
		}
	}()
	return ch, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// --- helpers ---

func (s *MongoStore) findAll(ctx context.Context, coll string, filter bson.M, out interface{}) error {
	cursor, err := s.coll(coll).Find(ctx, filter)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func (s *MongoStore) updateOne(ctx context.Context, coll, id string, update bson.M, op string) error {
	result, err := s.coll(coll).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return wrapErr(op, err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *MongoStore) deleteOne(ctx context.Context, coll, id string, op string) error {
	result, err := s.coll(coll).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return wrapErr(op, err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.Store = (*MongoStore)(nil)
