package ledger

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scriptcheck/internal/config"
	"scriptcheck/internal/services"
)

const mongoConnectTimeout = 10 * time.Second

// MongoStore is the production Store backed by a MongoDB collection. All
// guards are expressed as filters on single-document updates so the
// compare-and-set semantics come from the server, not from client locking.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, cfg *config.Config) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Ledger.URI))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "connect", "connect to mongodb", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, services.Wrap(services.ErrTransient, "ledger", "connect", "ping mongodb", err)
	}

	collection := client.Database(cfg.Ledger.Database).Collection(cfg.Ledger.Collection)
	return &MongoStore{client: client, collection: collection}, nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) EnsureJob(ctx context.Context, interviewID string, event HistoryEvent) error {
	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"status":              StatusQueued,
			"processing_attempts": 0,
			"last_updated":        now,
			"history":             []HistoryEvent{event},
		},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := s.collection.UpdateByID(ctx, interviewID, update, opts); err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "ensure", "upsert interview job", err)
	}
	return nil
}

func (s *MongoStore) Transition(ctx context.Context, interviewID string, to Status, stage string, event HistoryEvent, expected ...Status) (*InterviewJob, error) {
	filter := bson.M{
		"_id":    interviewID,
		"status": bson.M{"$in": expected},
	}
	set := bson.M{
		"status":       to,
		"last_updated": time.Now().UTC(),
	}
	if stage != "" {
		set["stage"] = stage
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"history": event},
	}
	if to == StatusProcessing {
		update["$inc"] = bson.M{"processing_attempts": 1}
	}

	var job InterviewJob
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if err == nil {
		return &job, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, services.Wrap(services.ErrTransient, "ledger", "transition", "update interview job", err)
	}

	// The guard failed: distinguish a lost compare-and-set from a missing job.
	current, getErr := s.Get(ctx, interviewID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, conflictError(interviewID, current.Status, expected)
}

func (s *MongoStore) AppendHistory(ctx context.Context, interviewID string, event HistoryEvent) error {
	update := bson.M{
		"$set":  bson.M{"last_updated": time.Now().UTC()},
		"$push": bson.M{"history": event},
	}
	res, err := s.collection.UpdateByID(ctx, interviewID, update)
	if err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "history", "append history event", err)
	}
	if res.MatchedCount == 0 {
		return notFoundError(interviewID, "history")
	}
	return nil
}

func (s *MongoStore) RecordResults(ctx context.Context, interviewID string, update ResultsUpdate) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":     interviewID,
		"status":  StatusProcessing,
		"results": bson.M{"$exists": false},
	}
	set := bson.M{
		"status":       StatusCompleted,
		"results":      update.Result,
		"completed_at": now,
		"last_updated": now,
	}
	if update.EmbeddingsGCSPath != "" {
		set["embeddings_gcs_path"] = update.EmbeddingsGCSPath
	}
	if update.JSONGCSPath != "" {
		set["json_gcs_path"] = update.JSONGCSPath
	}
	change := bson.M{
		"$set":  set,
		"$push": bson.M{"history": update.Event},
	}

	res, err := s.collection.UpdateOne(ctx, filter, change)
	if err != nil {
		return services.Wrap(services.ErrTransient, "ledger", "results", "record interview results", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	current, getErr := s.Get(ctx, interviewID)
	if getErr != nil {
		return getErr
	}
	return conflictError(interviewID, current.Status, []Status{StatusProcessing})
}

func (s *MongoStore) Get(ctx context.Context, interviewID string) (*InterviewJob, error) {
	var job InterviewJob
	err := s.collection.FindOne(ctx, bson.M{"_id": interviewID}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFoundError(interviewID, "get")
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "ledger", "get", "load interview job", err)
	}
	return &job, nil
}
