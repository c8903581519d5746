// Package s3 implements a middle store on Amazon S3 or any S3-compatible
// endpoint, using the AWS SDK v2.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"

	"github.com/custodia-labs/synchronoux/internal/adapters/driven/middlestore"
	"github.com/custodia-labs/synchronoux/internal/core/domain"
	"github.com/custodia-labs/synchronoux/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.MiddleStore = (*Store)(nil)

// defaultRegion is used when neither the options nor the environment set one.
const defaultRegion = "us-east-1"

// maxDeleteKeys is the DeleteObjects request limit.
const maxDeleteKeys = 1000

// API is the subset of the S3 client the store uses.
// Tests substitute a fake.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Config holds the client settings.
type Config struct {
	// Region overrides the region from the environment.
	Region string

	// Endpoint points the client at an S3-compatible service.
	Endpoint string

	// UsePathStyle addresses buckets as path segments, as most
	// S3-compatible services require.
	UsePathStyle bool

	// MaxRetries overrides the SDK retryer's attempt count.
	MaxRetries int
}

// Store is an S3-backed middle store.
type Store struct {
	opts   middlestore.Options
	client API
}

// New loads the default AWS credential chain and creates a store.
func New(ctx context.Context, opts middlestore.Options, cfg Config) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 middle store needs a bucket", domain.ErrInvalidInput)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(opts, s3.NewFromConfig(awsCfg, s3Opts...)), nil
}

// NewWithClient creates a store around an existing client.
func NewWithClient(opts middlestore.Options, client API) *Store {
	return &Store{opts: opts, client: client}
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

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(mimetype.Detect([]byte(content)).String()),
	}
	if model != "" {
		input.Metadata = map[string]string{"model": model}
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return nil, s.wrap("upload "+key, err)
	}
	return &domain.MiddleFile{
		Name:    key,
		Locator: key,
		Size:    int64(len(content)),
		ETag:    strings.Trim(aws.ToString(out.ETag), `"`),
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
	keys, err := s.list(ctx, s.opts.Prefix(params))
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	for start := 0; start < len(keys); start += maxDeleteKeys {
		end := min(start+maxDeleteKeys, len(keys))
		if err := s.deleteKeys(ctx, keys[start:end]); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	s.opts.Notify(ctx, middlestore.EventCleanupPullDone, fmt.Sprintf("deleted %d object(s)", len(keys)), params)
	return nil
}

func (s *Store) list(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		if err := s.opts.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrap("list "+prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, error) {
	if err := s.opts.Wait(ctx); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s.wrap("download "+key, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return content, nil
}

func (s *Store) deleteKeys(ctx context.Context, keys []string) error {
	if err := s.opts.Wait(ctx); err != nil {
		return err
	}
	objects := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.opts.Bucket),
		Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return s.wrap("delete", err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return fmt.Errorf("delete %s: %s: %s (%d failed)",
			aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message), len(out.Errors))
	}
	return nil
}

// wrap maps S3 error codes onto domain errors and records throttling.
func (s *Store) wrap(op string, err error) error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%s: %w: %s", op, domain.ErrNotFound, apiErr.ErrorMessage())
		case "SlowDown", "TooManyRequests", "RequestLimitExceeded":
			s.opts.Throttle(0)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
