// Package gcs implements a middle store on Google Cloud Storage through the
// JSON API.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MiddleStore = (*Store)(nil)

// Config holds the client settings.
type Config struct {
	// CredentialsFile is a service account or authorized user JSON key.
	// Empty uses Application Default Credentials.
	CredentialsFile string

	// Endpoint overrides the JSON API endpoint, for emulators.
	// With an endpoint and no credentials file the client is unauthenticated.
	Endpoint string
}

// Store is a Cloud Storage backed middle store.
type Store struct {
	opts middlestore.Options
	svc  *storage.Service
}

// New authenticates and creates a store.
func New(ctx context.Context, opts middlestore.Options, cfg Config) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: gcs middle store needs a bucket", domain.ErrInvalidInput)
	}

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}
	switch {
	case cfg.CredentialsFile != "":
		ts, err := tokenSourceFromFile(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	case cfg.Endpoint != "":
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	default:
		ts, err := google.DefaultTokenSource(ctx, storage.DevstorageReadWriteScope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}

	svc, err := storage.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return NewWithService(opts, svc), nil
}

// NewWithService creates a store around an existing service.
func NewWithService(opts middlestore.Options, svc *storage.Service) *Store {
	return &Store{opts: opts, svc: svc}
}

func tokenSourceFromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, storage.DevstorageReadWriteScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	return creds.TokenSource, nil
}

// WaitAction lists the objects under the pull prefix and reports ready once a
// terminator is among them.
func (s *Store) WaitAction(ctx context.Context, params domain.Params) ([]string, bool, error) {
	names, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return nil, false, err
	}
	found, ready := middlestore.Found(names)
	return found, ready, nil
}

// LoadFoundData downloads each object and passes its content to fn, in order.
func (s *Store) LoadFoundData(ctx context.Context, locators []string, fn driven.ItemFunc, params domain.Params) error {
	s.opts.Notify(ctx, middlestore.EventPulledLocators, fmt.Sprintf("found %d pulled locator(s)", len(locators)), params)
	for _, name := range locators {
		s.opts.Notify(ctx, middlestore.EventPreparingToGetData, "downloading "+name, params)
		content, err := s.download(ctx, name)
		if err != nil {
			return err
		}
		if err := fn(ctx, name, content); err != nil {
			return err
		}
		s.opts.Notify(ctx, middlestore.EventSuccessfullyGot, "downloaded "+name, params)
	}
	return nil
}

// UploadString inserts content as a new object at destinationPath.
func (s *Store) UploadString(
	ctx context.Context,
	content, destinationPath, model string,
	_ domain.Params,
) (*domain.MiddleFile, error) {
	name := strings.TrimPrefix(destinationPath, "/")
	if name == "" {
		return nil, fmt.Errorf("%w: empty destination path", domain.ErrInvalidInput)
	}
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}

	contentType := mimetype.Detect([]byte(content)).String()
	object := &storage.Object{Name: name, ContentType: contentType}
	if model != "" {
		object.Metadata = map[string]string{"model": model}
	}

	out, err := s.svc.Objects.Insert(s.opts.Bucket, object).
		Media(strings.NewReader(content), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, s.wrap(err))
	}
	return &domain.MiddleFile{
		Name:    out.Name,
		Locator: out.Name,
		Size:    int64(out.Size),
		ETag:    out.Etag,
	}, nil
}

// Cleanup deletes every object under the pull prefix after a pull.
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
	names, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	for _, name := range names {
		if err := s.opts.Wait(ctx); err != nil {
			return err
		}
		err := s.svc.Objects.Delete(s.opts.Bucket, name).Context(ctx).Do()
		if err != nil {
			if wrapped := s.wrap(err); !errors.Is(wrapped, domain.ErrNotFound) {
				return fmt.Errorf("cleanup %s: %w", name, wrapped)
			}
		}
	}
	s.opts.Notify(ctx, middlestore.EventCleanupPullDone, fmt.Sprintf("deleted %d object(s)", len(names)), params)
	return nil
}

func (s *Store) list(ctx context.Context, prefix string) ([]string, error) {
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}
	var names []string
	err := s.svc.Objects.List(s.opts.Bucket).Prefix(prefix).Pages(ctx, func(page *storage.Objects) error {
		for _, obj := range page.Items {
			if obj.Name == "" || strings.HasSuffix(obj.Name, "/") {
				continue
			}
			names = append(names, obj.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, s.wrap(err))
	}
	return names, nil
}

func (s *Store) download(ctx context.Context, name string) ([]byte, error) {
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := s.svc.Objects.Get(s.opts.Bucket, name).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, s.wrap(err))
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return content, nil
}

// wrap records throttling on the limiter before mapping the error.
func (s *Store) wrap(err error) error {
	if IsRateLimited(err) {
		s.opts.Throttle(retryAfter(err))
	}
	return WrapError(err)
}
