package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/taskkeeper/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) AddLogEntry(ctx context.Context, runID int64, logTime time.Time, msg string, stacktrace *string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	entry := model.LogEntry{
		RunID:      runID,
		LogTime:    logTime,
		Message:    msg,
		Stacktrace: stacktrace,
	}
	if _, err := s.logs.InsertOne(ctxTimeout, entry); err != nil {
		return fmt.Errorf("store: add log entry for run %d: %w", runID, err)
	}
	return nil
}

func (s *Store) GetLogEntries(ctx context.Context, runID int64) ([]model.LogEntry, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "log_time", Value: 1}})
	cursor, err := s.logs.Find(ctxTimeout, bson.M{"run_id": runID}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: list log entries for run %d: %w", runID, err)
	}
	defer cursor.Close(ctxTimeout)

	var entries []model.LogEntry
	if err := cursor.All(ctxTimeout, &entries); err != nil {
		return nil, fmt.Errorf("store: decode log entries for run %d: %w", runID, err)
	}
	return entries, nil
}
