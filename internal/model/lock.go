package model

import "time"

// MasterLock is the single cluster-wide row that grants execution rights
// to whichever node currently holds it.
type MasterLock struct {
	LockName            string    `bson:"lock_name"`
	NodeName            string    `bson:"node_name"`
	LockTakenTime       time.Time `bson:"lock_taken_time"`
	LockLastUpdatedTime time.Time `bson:"lock_last_updated_time"`
}

// IsValid reports whether the lock is still within its validity window at
// the given instant.
func (l *MasterLock) IsValid(now time.Time, validity time.Duration) bool {
	return now.Before(l.LockLastUpdatedTime.Add(validity))
}
