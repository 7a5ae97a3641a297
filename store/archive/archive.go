// Package archive is a write-only audit sink for terminal missions, using
// go.mongodb.org/mongo-driver/v2 the way the teacher's database package uses
// mongo-driver/v1: a single long-lived client with pooling, health-checked
// by a ping on demand (IsHealthy), started and stopped against a context.
//
// It exists alongside store/postgres (the system of record) because §1
// calls out retaining a durable trail of completed/canceled/failed missions
// independent of the relational store's retention policy; nothing reads
// from it inside the dispatcher's hot path.
package archive

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/nvidia-isaac/mission-dispatch/model"
	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// Config holds the connection settings for the archive sink.
type Config struct {
	URI          string
	Database     string
	Collection   string
	MaxPoolSize  uint64
	MinPoolSize  uint64
}

// DefaultConfig fills in the collection name used throughout the rest of
// this package; Mongo-specific pool sizing mirrors the teacher's constants.
func DefaultConfig() Config {
	return Config{
		Collection:  "missions_archive",
		MaxPoolSize: 100,
		MinPoolSize: 10,
	}
}

// Archive is a write-only mission history sink.
type Archive struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect establishes a pooled connection and verifies it with a ping,
// mirroring MongodbHandler.Start.
func Connect(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.URI == "" {
		return nil, shared.NewUsageError("archive: URI is required")
	}
	if cfg.Database == "" {
		return nil, shared.NewUsageError("archive: Database is required")
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, shared.NewTransientError(err, "connecting to mongo archive")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, shared.NewTransientError(err, "pinging mongo archive")
	}

	collectionName := cfg.Collection
	if collectionName == "" {
		collectionName = DefaultConfig().Collection
	}

	shared.Infof("connected to mongo archive database %q", cfg.Database)
	return &Archive{
		client:     client,
		collection: client.Database(cfg.Database).Collection(collectionName),
	}, nil
}

// Close disconnects from Mongo.
func (a *Archive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

// IsHealthy pings Mongo with a short timeout, mirroring
// MongodbHandler.IsHealthy.
func (a *Archive) IsHealthy(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.client.Ping(pingCtx, readpref.Primary()) == nil
}

// record is the archived document shape: the full mission plus the instant
// it was written, distinct from model.Mission's UpdatedAt which reflects
// the last status transition rather than the archive write time.
type record struct {
	Mission   *model.Mission `bson:"mission"`
	Name      string         `bson:"name"`
	State     model.MissionState `bson:"state"`
	Robot     string         `bson:"robot"`
	ArchivedAt time.Time     `bson:"archived_at"`
}

// Append writes a terminal mission's full document to the archive. Missions
// are archived once, on their first transition into a Done state; callers
// are responsible for not calling Append twice for the same mission.
func (a *Archive) Append(ctx context.Context, mission *model.Mission, at time.Time) error {
	if !mission.Status.State.Done() {
		return shared.NewUsageError("archive: mission %q is not terminal (state %s)", mission.Name, mission.Status.State)
	}
	doc := record{
		Mission:    mission,
		Name:       mission.Name,
		State:      mission.Status.State,
		Robot:      mission.Spec.Robot,
		ArchivedAt: at,
	}
	_, err := a.collection.InsertOne(ctx, doc)
	if err != nil {
		return shared.NewTransientError(err, "archiving mission %q", mission.Name)
	}
	return nil
}

// ListByRobot returns archived missions for a robot, most recently archived
// first, for operator audit queries.
func (a *Archive) ListByRobot(ctx context.Context, robot string, limit int64) ([]*model.Mission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "archived_at", Value: -1}}).SetLimit(limit)
	cursor, err := a.collection.Find(ctx, bson.D{{Key: "robot", Value: robot}}, opts)
	if err != nil {
		return nil, shared.NewTransientError(err, "listing archived missions for robot %q", robot)
	}
	defer cursor.Close(ctx)

	var missions []*model.Mission
	for cursor.Next(ctx) {
		var rec record
		if err := cursor.Decode(&rec); err != nil {
			return nil, shared.NewServerError(err, "decoding archived mission")
		}
		missions = append(missions, rec.Mission)
	}
	return missions, cursor.Err()
}
