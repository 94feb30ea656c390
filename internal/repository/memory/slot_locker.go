package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"appointment-scheduler/internal/domain/entity"

	"github.com/sirupsen/logrus"
)

const (
	// Interval for cleaning up stale mutexes
	mutexCleanupInterval = 10 * time.Minute

	// How long a mutex must be unused before cleanup
	mutexStaleThreshold = 10 * time.Minute
)

// SlotLocker hands out one mutex per slot key.
//
// Lock Ordering (to prevent deadlocks):
// keys are always acquired in SortedSlotKeys order.
type SlotLocker struct {
	log *logrus.Logger

	slotMu sync.Map // map[string]*mutexWithTimestamp

	staleAfter time.Duration

	// Graceful shutdown
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix nanoseconds
}

// NewSlotLocker starts the background sweeper. Call Stop() during shutdown.
func NewSlotLocker(log *logrus.Logger) *SlotLocker {
	l := newSlotLocker(log, mutexStaleThreshold)

	l.wg.Add(1)
	go l.cleanupLoop(mutexCleanupInterval)

	return l
}

func newSlotLocker(log *logrus.Logger, staleAfter time.Duration) *SlotLocker {
	return &SlotLocker{
		log:        log,
		staleAfter: staleAfter,
		stopChan:   make(chan struct{}),
	}
}

// Stop ends the sweeper. Safe to call multiple times.
func (l *SlotLocker) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.stopChan)
		l.wg.Wait()
		l.log.Debug("Slot locker stopped")
	}
}

// Lock acquires every key in canonical order and returns the release func.
func (l *SlotLocker) Lock(keys []entity.SlotKey) func() {
	sorted := entity.SortedSlotKeys(keys)
	held := make([]*mutexWithTimestamp, 0, len(sorted))
	for _, key := range sorted {
		held = append(held, l.lockKey(key.String()))
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].lastUsed.Store(time.Now().UnixNano())
			held[i].mu.Unlock()
		}
	}
}

// lockKey locks the mutex currently registered for key. The sweeper only
// deletes entries it holds, so a registered mutex we hold cannot disappear.
func (l *SlotLocker) lockKey(key string) *mutexWithTimestamp {
	for {
		v, _ := l.slotMu.LoadOrStore(key, &mutexWithTimestamp{})
		mt := v.(*mutexWithTimestamp)
		mt.lastUsed.Store(time.Now().UnixNano())
		mt.mu.Lock()

		if current, ok := l.slotMu.Load(key); ok && current == mt {
			return mt
		}
		// swept between load and lock
		mt.mu.Unlock()
	}
}

func (l *SlotLocker) cleanupLoop(interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanupStale()
		}
	}
}

// cleanupStale removes unused mutexes. lastUsed is checked while holding the mutex.
func (l *SlotLocker) cleanupStale() int {
	cutoff := time.Now().Add(-l.staleAfter).UnixNano()
	var cleaned int

	l.slotMu.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}

		// TryLock first - if we can't get lock, someone is using it
		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoff {
				l.slotMu.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		l.log.Debugf("Cleaned up %d stale slot mutexes", cleaned)
	}
	return cleaned
}

// size is used by tests
func (l *SlotLocker) size() int {
	n := 0
	l.slotMu.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
