package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
	"github.com/dandantas/taskkeeper/internal/task"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// lockValidity mirrors task's own constant of the same name: the window
// after which a holder's last heartbeat is considered stale enough to let
// another node claim the lock. It is duplicated here, rather than imported,
// because how long a heartbeat stays valid is a storage-layer concern the
// Repository contract deliberately keeps out of its method signatures.
const lockValidity = 5 * time.Minute

// TryAcquireLock claims the named lock for nodeName if either no lock row
// exists yet or the existing holder's last heartbeat is older than
// lockValidity. FindOneAndUpdate with upsert plus an $or filter makes the
// claim atomic against concurrent attempts from other nodes.
func (s *Store) TryAcquireLock(ctx context.Context, lockName, nodeName string, now time.Time) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stale := now.Add(-lockValidity)
	filter := bson.M{
		"lock_name": lockName,
		"$or": []bson.M{
			{"lock_last_updated_time": bson.M{"$lt": stale}},
			{"node_name": nodeName},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"lock_name":              lockName,
			"node_name":              nodeName,
			"lock_last_updated_time": now,
		},
		"$setOnInsert": bson.M{
			"lock_taken_time": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result model.MasterLock
	err := s.locks.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) || mongo.IsDuplicateKeyError(err) {
			// held by another node and still within its validity window: the
			// filter matches nothing, so the upsert's insert collides with the
			// existing row on the unique lock_name index
			return false, nil
		}
		return false, fmt.Errorf("store: acquire lock %q: %w", lockName, err)
	}
	return result.NodeName == nodeName, nil
}

// KeepLock refreshes nodeName's heartbeat on the lock, succeeding only if
// nodeName is still the recorded holder.
func (s *Store) KeepLock(ctx context.Context, lockName, nodeName string, now time.Time) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"lock_name": lockName, "node_name": nodeName}
	update := bson.M{"$set": bson.M{"lock_last_updated_time": now}}

	result, err := s.locks.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return false, fmt.Errorf("store: heartbeat lock %q: %w", lockName, err)
	}
	return result.MatchedCount > 0, nil
}

func (s *Store) GetLock(ctx context.Context, lockName string) (*model.MasterLock, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var lock model.MasterLock
	err := s.locks.FindOne(ctxTimeout, bson.M{"lock_name": lockName}).Decode(&lock)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get lock %q: %w", lockName, err)
	}
	return &lock, nil
}

// ReleaseLock deletes the lock row, but only if nodeName currently holds
// it, guarding against one node releasing another's lock.
func (s *Store) ReleaseLock(ctx context.Context, lockName, nodeName string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"lock_name": lockName, "node_name": nodeName}
	result, err := s.locks.DeleteOne(ctxTimeout, filter)
	if err != nil {
		return fmt.Errorf("store: release lock %q: %w", lockName, err)
	}
	if result.DeletedCount == 0 {
		return task.ErrLockNotHeld
	}
	return nil
}

var _ task.Repository = (*Store)(nil)
