package task

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// masterLockName is the single row every node in the cluster contends
	// for.
	masterLockName = "scheduledtask"

	// lockCadence is how often the keeper attempts an acquire/heartbeat.
	lockCadence = 1 * time.Minute

	// lockValidity is how long a heartbeat remains good for; a holder
	// whose last update is older than this is considered to have lost
	// the lock and any node may claim it.
	lockValidity = 5 * time.Minute
)

// MasterLockKeeper is the background actor that tries to acquire and
// heartbeat the single cluster-wide lock row on its own ticker/stopChan/
// WaitGroup loop.
type MasterLockKeeper struct {
	repo      Repository
	nodeName  string
	onAcquire func()

	held     atomic.Bool
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMasterLockKeeper creates a keeper that has not yet started attempting
// acquisition. onAcquire is invoked (from the keeper's own goroutine)
// every time the keeper transitions from not-holding to holding, so the
// Registry can wake sleeping runners.
func NewMasterLockKeeper(repo Repository, nodeName string, onAcquire func()) *MasterLockKeeper {
	return &MasterLockKeeper{
		repo:      repo,
		nodeName:  nodeName,
		onAcquire: onAcquire,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the acquire/heartbeat loop.
func (k *MasterLockKeeper) Start(ctx context.Context) {
	k.ticker = time.NewTicker(lockCadence)
	k.wg.Add(1)
	go k.run(ctx)
}

// Stop halts the loop and makes a best-effort attempt to release the lock
// if currently held.
func (k *MasterLockKeeper) Stop(ctx context.Context) {
	close(k.stopChan)
	if k.ticker != nil {
		k.ticker.Stop()
	}
	k.wg.Wait()

	if k.held.Load() {
		if err := k.repo.ReleaseLock(ctx, masterLockName, k.nodeName); err != nil {
			slog.Error("master lock keeper: failed to release lock on shutdown", "node", k.nodeName, "error", err)
		}
		k.held.Store(false)
	}
}

// HasLock reports whether this node currently believes it holds the lock.
func (k *MasterLockKeeper) HasLock() bool {
	return k.held.Load()
}

func (k *MasterLockKeeper) run(ctx context.Context) {
	defer k.wg.Done()

	k.tick(ctx)

	for {
		select {
		case <-k.ticker.C:
			k.tick(ctx)
		case <-k.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (k *MasterLockKeeper) tick(ctx context.Context) {
	now := time.Now().UTC()

	if !k.held.Load() {
		acquired, err := k.repo.TryAcquireLock(ctx, masterLockName, k.nodeName, now)
		if err != nil {
			slog.Warn("master lock keeper: acquire attempt failed", "node", k.nodeName, "error", err)
			return
		}
		if acquired {
			slog.Info("master lock keeper: acquired master lock", "node", k.nodeName)
			k.held.Store(true)
			if k.onAcquire != nil {
				k.onAcquire()
			}
		}
		return
	}

	kept, err := k.repo.KeepLock(ctx, masterLockName, k.nodeName, now)
	if err != nil {
		slog.Warn("master lock keeper: heartbeat failed", "node", k.nodeName, "error", err)
		return
	}
	if !kept {
		slog.Warn("master lock keeper: lost master lock", "node", k.nodeName)
		k.held.Store(false)
	}
}
