package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates every index the query patterns in this package rely
// on. It is idempotent and meant to run once at process startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	slog.Info("store: creating indexes")

	if err := s.ensureScheduleIndexes(ctx); err != nil {
		return err
	}
	if err := s.ensureRunIndexes(ctx); err != nil {
		return err
	}
	if err := s.ensureLogIndexes(ctx); err != nil {
		return err
	}
	if err := s.ensureLockIndexes(ctx); err != nil {
		return err
	}

	slog.Info("store: indexes ready")
	return nil
}

func (s *Store) ensureScheduleIndexes(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.schedules.Indexes().CreateMany(ctxTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_name_unique"),
		},
	})
	return err
}

func (s *Store) ensureRunIndexes(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.runs.Indexes().CreateMany(ctxTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_run_id_unique"),
		},
		{
			Keys: bson.D{
				{Key: "schedule_name", Value: 1},
				{Key: "run_start", Value: -1},
			},
			Options: options.Index().SetName("idx_schedule_name_run_start"),
		},
	})
	return err
}

func (s *Store) ensureLogIndexes(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.logs.Indexes().CreateMany(ctxTimeout, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "run_id", Value: 1},
				{Key: "log_time", Value: 1},
			},
			Options: options.Index().SetName("idx_run_id_log_time"),
		},
	})
	return err
}

func (s *Store) ensureLockIndexes(ctx context.Context) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.locks.Indexes().CreateMany(ctxTimeout, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "lock_name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_lock_name_unique"),
		},
	})
	return err
}
