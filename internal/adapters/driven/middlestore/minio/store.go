// Package minio implements a middle store on MinIO or any S3-compatible
// server, using minio-go.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MiddleStore = (*Store)(nil)

// Config holds the client settings.
type Config struct {
	// Endpoint is host[:port] without a scheme.
	Endpoint string

	// AccessKey and SecretKey authenticate the client. Both empty means anonymous.
	AccessKey string
	SecretKey string

	// Secure selects HTTPS.
	Secure bool

	// Region skips the bucket location lookup when set.
	Region string
}

// Store is a MinIO-backed middle store.
type Store struct {
	opts   middlestore.Options
	client *minio.Client
}

// New creates a store.
func New(opts middlestore.Options, cfg Config) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: minio middle store needs a bucket", domain.ErrInvalidInput)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: minio middle store needs an endpoint", domain.ErrInvalidInput)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{opts: opts, client: client}, nil
}

// WaitAction lists the objects under the pull prefix and reports ready once a
// terminator is among them.
func (s *Store) WaitAction(ctx context.Context, params domain.Params) ([]string, bool, error) {
	keys, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return nil, false, err
	}
	found, ready := middlestore.Found(keys)
	return found, ready, nil
}

// LoadFoundData downloads each object and passes its content to fn, in order.
func (s *Store) LoadFoundData(ctx context.Context, locators []string, fn driven.ItemFunc, params domain.Params) error {
	s.opts.Notify(ctx, middlestore.EventPulledLocators, fmt.Sprintf("found %d pulled locator(s)", len(locators)), params)
	for _, key := range locators {
		s.opts.Notify(ctx, middlestore.EventPreparingToGetData, "downloading "+key, params)
		content, err := s.get(ctx, key)
		if err != nil {
			return err
		}
		if err := fn(ctx, key, content); err != nil {
			return err
		}
		s.opts.Notify(ctx, middlestore.EventSuccessfullyGot, "downloaded "+key, params)
	}
	return nil
}

// UploadString puts content at destinationPath with a sniffed content type.
func (s *Store) UploadString(
	ctx context.Context,
	content, destinationPath, model string,
	_ domain.Params,
) (*domain.MiddleFile, error) {
	key := strings.TrimPrefix(destinationPath, "/")
	if key == "" {
		return nil, fmt.Errorf("%w: empty destination path", domain.ErrInvalidInput)
	}
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}

	putOpts := minio.PutObjectOptions{
		ContentType: mimetype.Detect([]byte(content)).String(),
	}
	if model != "" {
		putOpts.UserMetadata = map[string]string{"model": model}
	}

	info, err := s.client.PutObject(ctx, s.opts.Bucket, key, bytes.NewReader([]byte(content)), int64(len(content)), putOpts)
	if err != nil {
		return nil, s.wrap("upload "+key, err)
	}
	return &domain.MiddleFile{
		Name:    key,
		Locator: key,
		Size:    int64(len(content)),
		ETag:    info.ETag,
	}, nil
}

// Cleanup removes every object under the pull prefix after a pull.
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
	keys, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	if err := s.opts.Wait(ctx); err != nil {
		return err
	}

	objects := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objects <- minio.ObjectInfo{Key: key}
	}
	close(objects)

	var failed []string
	var firstErr error
	for rmErr := range s.client.RemoveObjects(ctx, s.opts.Bucket, objects, minio.RemoveObjectsOptions{}) {
		if rmErr.Err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = rmErr.Err
		}
		failed = append(failed, rmErr.ObjectName)
	}
	if firstErr != nil {
		return fmt.Errorf("cleanup %s: %w", strings.Join(failed, ", "), s.wrap("delete", firstErr))
	}
	s.opts.Notify(ctx, middlestore.EventCleanupPullDone, fmt.Sprintf("deleted %d object(s)", len(keys)), params)
	return nil
}

func (s *Store) list(ctx context.Context, prefix string) ([]string, error) {
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.opts.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, s.wrap("list "+prefix, obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.opts.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap("download "+key, err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap("download "+key, err)
	}
	return content, nil
}

// wrap maps S3 error codes onto domain errors and records throttling.
func (s *Store) wrap(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return fmt.Errorf("%s: %w: %s", op, domain.ErrNotFound, resp.Message)
	case resp.Code == "SlowDown" || resp.StatusCode == http.StatusTooManyRequests:
		s.opts.Throttle(0)
	}
	return fmt.Errorf("%s: %w", op, err)
}
