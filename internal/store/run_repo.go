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

// errRunAlreadyTerminal is returned by SetStatus when the run has already
// recorded a terminal outcome and a second terminal write is attempted.
var errRunAlreadyTerminal = errors.New("store: run already has a terminal status")

func (s *Store) AddScheduleRun(ctx context.Context, name, hostname string, runStart time.Time, initialMsg string) (int64, error) {
	runID, err := s.nextRunID(ctx)
	if err != nil {
		return 0, err
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	run := model.ScheduleRun{
		RunID:        runID,
		ScheduleName: name,
		Hostname:     hostname,
		Status:       model.RunStatusStarted,
		StatusMsg:    initialMsg,
		RunStart:     runStart,
		StatusTime:   runStart,
	}
	if _, err := s.runs.InsertOne(ctxTimeout, run); err != nil {
		return 0, fmt.Errorf("store: insert run %d for %q: %w", runID, name, err)
	}
	return runID, nil
}

// SetStatus records the terminal outcome of a run. Every status this method
// is ever called with is terminal (Done/Failed/Dispatched), so the filter
// only matches a run still in RunStatusStarted: a second terminal write for
// the same run_id is rejected as a no-op rather than overwriting the first
// recorded outcome, terminal or not.
func (s *Store) SetStatus(ctx context.Context, runID int64, status model.RunStatus, statusTime time.Time, msg string, stacktrace *string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"run_id": runID, "status": model.RunStatusStarted}
	update := bson.M{"$set": bson.M{
		"status":            status,
		"status_msg":        msg,
		"status_stacktrace": stacktrace,
		"status_time":       statusTime,
	}}

	result, err := s.runs.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return fmt.Errorf("store: set status for run %d: %w", runID, err)
	}
	if result.MatchedCount == 0 {
		exists, existsErr := s.runExists(ctxTimeout, runID)
		if existsErr != nil {
			return existsErr
		}
		if exists {
			return fmt.Errorf("store: run %d: %w", runID, errRunAlreadyTerminal)
		}
		return fmt.Errorf("store: run %d: %w", runID, mongo.ErrNoDocuments)
	}
	return nil
}

func (s *Store) runExists(ctx context.Context, runID int64) (bool, error) {
	err := s.runs.FindOne(ctx, bson.M{"run_id": runID}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("store: check run %d: %w", runID, err)
	}
	return true, nil
}

func (s *Store) GetLastRunForSchedule(ctx context.Context, name string) (*model.ScheduleRun, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "run_start", Value: -1}})
	var run model.ScheduleRun
	err := s.runs.FindOne(ctxTimeout, bson.M{"schedule_name": name}, opts).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get last run for %q: %w", name, err)
	}
	return &run, nil
}

func (s *Store) GetScheduleRunsBetween(ctx context.Context, name string, from, to time.Time) ([]model.ScheduleRun, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"schedule_name": name,
		"run_start":     bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "run_start", Value: -1}})

	cursor, err := s.runs.Find(ctxTimeout, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list runs for %q: %w", name, err)
	}
	defer cursor.Close(ctxTimeout)

	var runs []model.ScheduleRun
	if err := cursor.All(ctxTimeout, &runs); err != nil {
		return nil, fmt.Errorf("store: decode runs for %q: %w", name, err)
	}
	return runs, nil
}

func (s *Store) GetScheduleRun(ctx context.Context, runID int64) (*model.ScheduleRun, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run model.ScheduleRun
	err := s.runs.FindOne(ctxTimeout, bson.M{"run_id": runID}).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get run %d: %w", runID, err)
	}
	return &run, nil
}

// ExecuteRetentionPolicy deletes runs (and, if requested, their logs) that
// fall outside policy's age or count bounds. A zero MaxAge or MaxCount
// means that dimension is unbounded.
func (s *Store) ExecuteRetentionPolicy(ctx context.Context, name string, policy task.RetentionPolicy) error {
	if policy.MaxAge == 0 && policy.MaxCount == 0 {
		return nil
	}

	var toDelete []int64

	if policy.MaxAge > 0 {
		cutoff := time.Now().UTC().Add(-time.Duration(policy.MaxAge) * time.Second)
		ids, err := s.runIDsMatching(ctx, bson.M{
			"schedule_name": name,
			"run_start":     bson.M{"$lt": cutoff},
		})
		if err != nil {
			return err
		}
		toDelete = append(toDelete, ids...)
	}

	if policy.MaxCount > 0 {
		ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
		opts := options.Find().
			SetSort(bson.D{{Key: "run_start", Value: -1}}).
			SetSkip(int64(policy.MaxCount)).
			SetProjection(bson.M{"run_id": 1})
		cursor, err := s.runs.Find(ctxTimeout, bson.M{"schedule_name": name}, opts)
		if err != nil {
			cancel()
			return fmt.Errorf("store: retention scan for %q: %w", name, err)
		}
		var overflow []struct {
			RunID int64 `bson:"run_id"`
		}
		err = cursor.All(ctxTimeout, &overflow)
		cursor.Close(ctxTimeout)
		cancel()
		if err != nil {
			return fmt.Errorf("store: retention decode for %q: %w", name, err)
		}
		for _, o := range overflow {
			toDelete = append(toDelete, o.RunID)
		}
	}

	if len(toDelete) == 0 {
		return nil
	}
	return s.deleteRuns(ctx, toDelete, policy.DeleteLogs)
}

func (s *Store) runIDsMatching(ctx context.Context, filter bson.M) ([]int64, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.runs.Find(ctxTimeout, filter, options.Find().SetProjection(bson.M{"run_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("store: retention scan: %w", err)
	}
	defer cursor.Close(ctxTimeout)

	var docs []struct {
		RunID int64 `bson:"run_id"`
	}
	if err := cursor.All(ctxTimeout, &docs); err != nil {
		return nil, fmt.Errorf("store: retention decode: %w", err)
	}
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.RunID
	}
	return ids, nil
}

func (s *Store) deleteRuns(ctx context.Context, runIDs []int64, deleteLogs bool) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{"run_id": bson.M{"$in": runIDs}}
	if _, err := s.runs.DeleteMany(ctxTimeout, filter); err != nil {
		return fmt.Errorf("store: delete runs: %w", err)
	}

	if deleteLogs {
		if _, err := s.logs.DeleteMany(ctxTimeout, filter); err != nil {
			return fmt.Errorf("store: delete run logs: %w", err)
		}
	}
	return nil
}
