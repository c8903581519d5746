package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure MiddleStore implements the interface.
var _ driven.MiddleStore = (*MiddleStore)(nil)

// MiddleStore is an in-memory implementation of driven.MiddleStore.
// Both sides of an exchange can share one instance in tests.
type MiddleStore struct {
	opts middlestore.Options

	mu      sync.RWMutex
	objects map[string][]byte
	uploads []string
}

// NewMiddleStore creates a new in-memory middle store.
func NewMiddleStore(opts middlestore.Options) *MiddleStore {
	return &MiddleStore{
		opts:    opts,
		objects: make(map[string][]byte),
	}
}

// WaitAction reports ready once a terminator exists under the pull prefix.
func (s *MiddleStore) WaitAction(_ context.Context, params domain.Params) ([]string, bool, error) {
	locators, ready := middlestore.Found(s.List(s.opts.Prefix(params)))
	return locators, ready, nil
}

// LoadFoundData passes each object's content to fn, in order.
func (s *MiddleStore) LoadFoundData(ctx context.Context, locators []string, fn driven.ItemFunc, params domain.Params) error {
	s.opts.Notify(ctx, middlestore.EventPulledLocators, fmt.Sprintf("found %d pulled locator(s)", len(locators)), params)
	for _, locator := range locators {
		s.opts.Notify(ctx, middlestore.EventPreparingToGetData, "loading "+locator, params)
		content, ok := s.Get(locator)
		if !ok {
			return fmt.Errorf("load %s: %w", locator, domain.ErrNotFound)
		}
		if err := fn(ctx, locator, content); err != nil {
			return err
		}
		s.opts.Notify(ctx, middlestore.EventSuccessfullyGot, "loaded "+locator, params)
	}
	return nil
}

// UploadString stores content at destinationPath.
func (s *MiddleStore) UploadString(
	_ context.Context,
	content, destinationPath, _ string,
	_ domain.Params,
) (*domain.MiddleFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[destinationPath] = []byte(content)
	s.uploads = append(s.uploads, destinationPath)
	return &domain.MiddleFile{
		Name:    destinationPath,
		Locator: destinationPath,
		Size:    int64(len(content)),
	}, nil
}

// Cleanup removes every object under the pull prefix after a pull.
// Push cleanup has nothing to remove.
func (s *MiddleStore) Cleanup(ctx context.Context, phase domain.CleanupPhase, params domain.Params) error {
	if phase == domain.CleanupPush {
		if s.opts.SkipCleanup {
			s.opts.Notify(ctx, middlestore.EventSkippingPushClean, "skipping cleanup after push", params)
			return nil
		}
		s.opts.Notify(ctx, middlestore.EventCleanupPushStart, "cleaning up after push", params)
		s.opts.Notify(ctx, middlestore.EventCleanupPushDone, "cleaned up after push", params)
		return nil
	}
	if s.opts.SkipCleanup {
		s.opts.Notify(ctx, middlestore.EventSkippingPullClean, "skipping cleanup after pull", params)
		return nil
	}
	s.opts.Notify(ctx, middlestore.EventCleanupPullStart, "cleaning up after pull", params)
	for _, name := range s.List(s.opts.Prefix(params)) {
		s.Delete(name)
	}
	s.opts.Notify(ctx, middlestore.EventCleanupPullDone, "cleaned up after pull", params)
	return nil
}

// List returns the object names under prefix, sorted.
func (s *MiddleStore) List(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.objects))
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Get returns an object's content.
func (s *MiddleStore) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.objects[name]
	return content, ok
}

// Put stores an object directly.
func (s *MiddleStore) Put(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = content
}

// Delete removes an object.
func (s *MiddleStore) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
}

// Uploads returns the destinations passed to UploadString, in call order.
func (s *MiddleStore) Uploads() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.uploads))
	copy(out, s.uploads)
	return out
}
