// Package store is the MongoDB-backed implementation of task.Repository:
// pooled connection options, a FindOneAndUpdate-with-upsert idiom for the
// lock claim and the run-id counter, and filtered updates/deletes for the
// other conditional writes, applied to the schedule/run/log/lock schema the
// scheduling engine needs.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names for the four documents the scheduling engine persists.
const (
	CollectionSchedules    = "schedules"
	CollectionScheduleRuns = "schedule_runs"
	CollectionScheduleLogs = "schedule_logs"
	CollectionMasterLocks  = "master_locks"
	CollectionCounters     = "counters"
)

// Store is a MongoDB-backed task.Repository.
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	schedules *mongo.Collection
	runs      *mongo.Collection
	logs      *mongo.Collection
	locks     *mongo.Collection
	counters  *mongo.Collection
}

// Connect dials MongoDB with pooling and retry options tuned for a small,
// steadily-polling background service, then pings to confirm the
// connection is live.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (*Store, error) {
	slog.Info("store: connecting to MongoDB", "database", database)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetSocketTimeout(30 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true).
		SetCompressors([]string{"snappy"})

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	db := client.Database(database)
	slog.Info("store: connected to MongoDB")

	return &Store{
		client:    client,
		db:        db,
		schedules: db.Collection(CollectionSchedules),
		runs:      db.Collection(CollectionScheduleRuns),
		logs:      db.Collection(CollectionScheduleLogs),
		locks:     db.Collection(CollectionMasterLocks),
		counters:  db.Collection(CollectionCounters),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	slog.Info("store: disconnecting from MongoDB")
	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(closeCtx); err != nil {
		return fmt.Errorf("store: disconnect: %w", err)
	}
	return nil
}
