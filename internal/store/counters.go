package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// counterDoc backs a named monotonic counter. run_id needs to be strictly
// increasing and gap-tolerant across restarts, which primitive.ObjectID
// does not guarantee (it is time-ordered to the second, not a true
// sequence), so run ids are minted here instead.
type counterDoc struct {
	ID    string `bson:"_id"`
	Value int64  `bson:"value"`
}

const runIDCounter = "schedule_run_id"

// nextRunID atomically increments and returns the schedule_run_id counter.
func (s *Store) nextRunID(ctx context.Context) (int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": runIDCounter}
	update := bson.M{"$inc": bson.M{"value": int64(1)}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	if err := s.counters.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&doc); err != nil {
		return 0, fmt.Errorf("store: mint run id: %w", err)
	}
	return doc.Value, nil
}
