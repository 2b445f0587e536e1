package migration

import (
	"context"
	"sync"

	"github.com/libfaes/eventstream/lock"
	"github.com/libfaes/eventstream/model"
	"github.com/sirupsen/logrus"
)

// entry tracks one in-flight or completed migration's control surface
// alongside the Result produced once it finishes.
type entry struct {
	status   model.MigrationStatus
	executor *Executor
	result   *Result
}

// Service is a directory of migrations keyed by MigrationId. It owns the
// only copy of each migration's Executor, so Pause/Resume/Cancel called
// through the Service reach the same cooperative flags the running saga
// observes between events.
type Service struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	lockProv  lock.Provider
	logger    *logrus.Entry
}

// NewService creates an empty Service. A nil lockProvider is treated as
// lock.NewNoOpProvider(); a nil logger falls back to a bare entry over
// logrus.StandardLogger().
func NewService(lockProv lock.Provider, logger *logrus.Entry) *Service {
	if lockProv == nil {
		lockProv = lock.NewNoOpProvider()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{entries: make(map[string]*entry), lockProv: lockProv, logger: logger}
}

// Start builds an Executor for built, registers it in the directory, and
// runs the saga on a new goroutine. The caller gets the MigrationId back
// immediately; GetMigrationStatus/GetActiveMigrations observe progress.
func (s *Service) Start(ctx context.Context, built *Built, resolver StoreResolver) string {
	id := built.Context.MigrationId
	exec := NewExecutor(built, resolver, s.lockProv, s.logger)

	s.mu.Lock()
	s.entries[id] = &entry{status: model.StatusInProgress, executor: exec}
	s.mu.Unlock()

	go func() {
		result := exec.Run(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if e, ok := s.entries[id]; ok {
			e.result = result
			e.status = result.Status
		}
	}()

	return id
}

// GetActiveMigrations returns the MigrationIds of every migration whose
// status is not yet terminal.
func (s *Service) GetActiveMigrations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []string
	for id, e := range s.entries {
		if !e.status.IsTerminal() {
			active = append(active, id)
		}
	}
	return active
}

// GetMigrationStatus returns the current status of id, or ok=false when
// id names no migration this Service has ever started.
func (s *Service) GetMigrationStatus(id string) (model.MigrationStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return "", false
	}
	return e.status, true
}

// GetResult returns the finished Result for id, or nil when the migration
// is still running or id is unknown.
func (s *Service) GetResult(id string) *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.result == nil {
		return nil
	}
	return e.result
}

// Pause sets id's cooperative pause flag. A no-op on an unknown or already
// terminal id.
func (s *Service) Pause(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.status.IsTerminal() {
		return
	}
	e.executor.Pause()
	e.status = model.StatusPaused
}

// Resume clears id's cooperative pause flag. A no-op on an unknown or
// already terminal id.
func (s *Service) Resume(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.status.IsTerminal() {
		return
	}
	e.executor.Resume()
	e.status = model.StatusInProgress
}

// Cancel trips id's cancellation flag. A no-op on an unknown or already
// terminal id.
func (s *Service) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.status.IsTerminal() {
		return
	}
	e.executor.Cancel()
}
