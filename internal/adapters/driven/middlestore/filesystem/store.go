// Package filesystem implements a middle store on a local or shared directory.
// Options.Bucket is the root directory; locators are slash-separated paths
// relative to it.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MiddleStore = (*Store)(nil)

// Store is a directory-backed middle store.
type Store struct {
	opts middlestore.Options
	root string
}

// New creates a store rooted at opts.Bucket, creating the directory if needed.
func New(opts middlestore.Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: filesystem middle store needs a root directory", domain.ErrInvalidInput)
	}
	root, err := filepath.Abs(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &Store{opts: opts, root: root}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the absolute directory the pull prefix maps to.
func (s *Store) Dir(params domain.Params) string {
	return s.abs(s.opts.Prefix(params))
}

// WaitAction lists every file under the pull prefix and reports ready once a
// terminator is among them.
func (s *Store) WaitAction(ctx context.Context, params domain.Params) ([]string, bool, error) {
	locators, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return nil, false, err
	}
	found, ready := middlestore.Found(locators)
	return found, ready, nil
}

// LoadFoundData reads each locator and passes its content to fn, in order.
func (s *Store) LoadFoundData(ctx context.Context, locators []string, fn driven.ItemFunc, params domain.Params) error {
	s.opts.Notify(ctx, middlestore.EventPulledLocators, fmt.Sprintf("found %d pulled locator(s)", len(locators)), params)
	for _, locator := range locators {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.opts.Notify(ctx, middlestore.EventPreparingToGetData, "reading "+locator, params)
		content, err := os.ReadFile(s.abs(locator))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load %s: %w", locator, domain.ErrNotFound)
			}
			return fmt.Errorf("load %s: %w", locator, err)
		}
		if err := fn(ctx, locator, content); err != nil {
			return err
		}
		s.opts.Notify(ctx, middlestore.EventSuccessfullyGot, "read "+locator, params)
	}
	return nil
}

// UploadString writes content to destinationPath under the root.
// The file is written under a temporary name and renamed so watchers never
// see a partial batch.
func (s *Store) UploadString(
	_ context.Context,
	content, destinationPath, _ string,
	_ domain.Params,
) (*domain.MiddleFile, error) {
	name := clean(destinationPath)
	if name == "" {
		return nil, fmt.Errorf("%w: empty destination path", domain.ErrInvalidInput)
	}
	target := s.abs(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	return &domain.MiddleFile{
		Name:    name,
		Locator: name,
		Size:    int64(len(content)),
	}, nil
}

// Cleanup removes every file under the pull prefix after a pull.
// Push cleanup leaves the export for the other side.
func (s *Store) Cleanup(ctx context.Context, phase domain.CleanupPhase, params domain.Params) error {
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
	locators, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	for _, locator := range locators {
		if err := os.Remove(s.abs(locator)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("cleanup %s: %w", locator, err)
		}
	}
	s.opts.Notify(ctx, middlestore.EventCleanupPullDone, fmt.Sprintf("removed %d file(s)", len(locators)), params)
	return nil
}

// list returns the relative paths of regular files under prefix.
// A missing directory lists as empty.
func (s *Store) list(ctx context.Context, prefix string) ([]string, error) {
	dir := s.abs(prefix)
	var locators []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		locators = append(locators, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return locators, nil
}

func (s *Store) abs(locator string) string {
	return filepath.Join(s.root, filepath.FromSlash(clean(locator)))
}

// clean normalises a locator and keeps it inside the root.
func clean(locator string) string {
	c := path.Clean("/" + filepath.ToSlash(locator))
	return strings.TrimPrefix(c, "/")
}
