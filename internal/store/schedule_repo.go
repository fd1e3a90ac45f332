package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetSchedule returns nil, nil when no row exists for name; the caller
// (task.TaskRunner) turns that into task.ErrScheduleNotFound, since
// Registry.Register upserts every task's row before starting its runner.
func (s *Store) GetSchedule(ctx context.Context, name string) (*model.Schedule, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sched model.Schedule
	err := s.schedules.FindOne(ctxTimeout, bson.M{"name": name}).Decode(&sched)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get schedule %q: %w", name, err)
	}
	return &sched, nil
}

// UpsertSchedule creates the schedule row if it does not already exist. An
// existing row is left untouched so that a process restart does not clobber
// an operator's override or pause.
func (s *Store) UpsertSchedule(ctx context.Context, name, defaultCron string, initialNextRun *time.Time) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	filter := bson.M{"name": name}
	update := bson.M{
		"$setOnInsert": bson.M{
			"name":         name,
			"active":       true,
			"next_run":     initialNextRun,
			"run_once":     false,
			"last_updated": now,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := s.schedules.UpdateOne(ctxTimeout, filter, update, opts)
	if err != nil {
		return fmt.Errorf("store: upsert schedule %q: %w", name, err)
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, name string, active bool) error {
	return s.updateScheduleField(ctx, name, bson.M{"active": active})
}

func (s *Store) SetRunOnce(ctx context.Context, name string, runOnce bool) error {
	return s.updateScheduleField(ctx, name, bson.M{"run_once": runOnce})
}

func (s *Store) UpdateNextRun(ctx context.Context, name string, overriddenCron *string, nextRun *time.Time) error {
	return s.updateScheduleField(ctx, name, bson.M{
		"overridden_cron": overriddenCron,
		"next_run":        nextRun,
	})
}

func (s *Store) updateScheduleField(ctx context.Context, name string, fields bson.M) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields["last_updated"] = time.Now().UTC()
	filter := bson.M{"name": name}
	update := bson.M{"$set": fields}

	result, err := s.schedules.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("store: update schedule %q: %w", name, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("store: schedule %q: %w", name, mongo.ErrNoDocuments)
	}
	return nil
}

func (s *Store) GetAllSchedules(ctx context.Context) (map[string]model.Schedule, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.schedules.Find(ctxTimeout, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store: list schedules: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var all []model.Schedule
	if err := cursor.All(ctxTimeout, &all); err != nil {
		return nil, fmt.Errorf("store: decode schedules: %w", err)
	}

	out := make(map[string]model.Schedule, len(all))
	for _, sched := range all {
		out[sched.Name] = sched
	}
	return out, nil
}
