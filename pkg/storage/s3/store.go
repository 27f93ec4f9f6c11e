// Package s3 provides an S3-backed Store.
//
// Objects are staged in memory by the handle returned from Create and
// uploaded with a single PutObject when the handle is closed. The store also
// implements consistency.Guard using the SDK's ObjectExists waiter, so
// listing-lagged or cached S3-compatible endpoints are waited out before a
// writer reports completion.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/storage"
)

const (
	defaultWaitMinDelay = 500 * time.Millisecond
	defaultWaitMaxDelay = 5 * time.Second
	defaultMaxWait      = 60 * time.Second
)

var errHandleClosed = errors.New("handle closed")

// Metrics receives per-call S3 observations. A nil Metrics disables collection.
type Metrics interface {
	ObserveOperation(operation string, duration time.Duration, err error)
	RecordBytes(operation string, bytes int64)
}

// Config holds configuration for the S3 store.
type Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all keys (e.g., "warehouse/").
	// Should end with "/" if non-empty.
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// MaxRetries is the maximum number of attempts for transient errors.
	// Zero keeps the SDK default.
	MaxRetries int

	// WaitMinDelay and WaitMaxDelay bound the ObjectExists waiter backoff.
	WaitMinDelay time.Duration
	WaitMaxDelay time.Duration
}

// Store is an S3-backed implementation of storage.Store.
type Store struct {
	client       *s3.Client
	bucket       string
	keyPrefix    string
	waitMinDelay time.Duration
	waitMaxDelay time.Duration
	metrics      Metrics

	mu     sync.RWMutex
	closed bool
}

// New creates an S3 store with an existing client.
func New(client *s3.Client, cfg Config, metrics Metrics) *Store {
	s := &Store{
		client:       client,
		bucket:       cfg.Bucket,
		keyPrefix:    cfg.KeyPrefix,
		waitMinDelay: cfg.WaitMinDelay,
		waitMaxDelay: cfg.WaitMaxDelay,
		metrics:      metrics,
	}
	if s.waitMinDelay <= 0 {
		s.waitMinDelay = defaultWaitMinDelay
	}
	if s.waitMaxDelay < s.waitMinDelay {
		s.waitMaxDelay = max(defaultWaitMaxDelay, s.waitMinDelay)
	}
	return s
}

// NewFromConfig creates an S3 store by building a client from cfg.
func NewFromConfig(ctx context.Context, cfg Config, metrics Metrics) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	logger.Debug("S3 store configured",
		logger.Bucket(cfg.Bucket), logger.KeyRegion, cfg.Region, logger.KeyEndpoint, cfg.Endpoint)

	return New(client, cfg, metrics), nil
}

// Type returns storage.TypeS3.
func (s *Store) Type() string { return storage.TypeS3 }

func (s *Store) fullKey(path string) (string, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	return s.keyPrefix + key, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return nil
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, time.Since(start), err)
	}
}

// Create returns a handle that uploads its contents to path on Close.
func (s *Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key, err := s.fullKey(path)
	if err != nil {
		return nil, err
	}
	return &handle{store: s, ctx: context.WithoutCancel(ctx), key: key}, nil
}

func (s *Store) put(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	s.observe("PutObject", start, err)
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	if s.metrics != nil {
		s.metrics.RecordBytes("write", int64(len(data)))
	}

	logger.Debug("S3 object uploaded", logger.Bucket(s.bucket), logger.Key(key),
		logger.Size(int64(len(data))), logger.DurationMs(start))
	return nil
}

// Open streams a visible object.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	key, err := s.fullKey(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.observe("GetObject", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object %s: %w", key, err)
	}
	return resp.Body, nil
}

// Exists issues a HeadObject for path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	key, err := s.fullKey(path)
	if err != nil {
		return false, err
	}

	start := time.Now()
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.observe("HeadObject", start, err)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head object %s: %w", key, err)
	}
	return true, nil
}

// WaitForVisibility blocks until HeadObject finds path. Retry pacing is the
// SDK waiter's; the bound is the ctx deadline, or one minute without one.
func (s *Store) WaitForVisibility(ctx context.Context, path string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key, err := s.fullKey(path)
	if err != nil {
		return err
	}

	maxWait := defaultMaxWait
	if deadline, ok := ctx.Deadline(); ok {
		maxWait = time.Until(deadline)
	}
	if maxWait <= 0 {
		return consistency.TimeoutError(path, context.DeadlineExceeded)
	}

	waiter := s3.NewObjectExistsWaiter(s.client, func(o *s3.ObjectExistsWaiterOptions) {
		o.MinDelay = s.waitMinDelay
		o.MaxDelay = s.waitMaxDelay
	})

	start := time.Now()
	err = waiter.Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, maxWait)
	s.observe("WaitObjectExists", start, err)

	switch {
	case err == nil:
		logger.DebugCtx(ctx, "S3 object visible", logger.Key(key), logger.DurationMs(start))
		return nil
	case ctx.Err() != nil:
		return consistency.TimeoutError(path, ctx.Err())
	case waitTimedOut(err, time.Since(start), maxWait, s.waitMinDelay):
		return consistency.TimeoutError(path, err)
	default:
		return fmt.Errorf("s3 wait for %s: %w", key, err)
	}
}

// waitTimedOut reports whether a waiter error means the wait budget ran out
// rather than HeadObject failing. The waiter gives up once less than
// minDelay of maxWait remains, so the budget counts as spent from there.
func waitTimedOut(err error, elapsed, maxWait, minDelay time.Duration) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *smithy.OperationError
	if errors.As(err, &opErr) {
		return false
	}
	return elapsed >= maxWait-minDelay
}

// Delete removes a single object.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	key, err := s.fullKey(path)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	s.observe("DeleteObject", start, err)
	if err != nil {
		return fmt.Errorf("s3 delete object %s: %w", key, err)
	}
	return nil
}

// List returns all keys below prefix with the store's key prefix stripped.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix + prefix),
	})

	paths := make([]string, 0)
	for paginator.HasMorePages() {
		start := time.Now()
		page, err := paginator.NextPage(ctx)
		s.observe("ListObjectsV2", start, err)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			paths = append(paths, strings.TrimPrefix(aws.ToString(obj.Key), s.keyPrefix))
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// HealthCheck verifies the bucket is reachable with a HeadBucket call.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// isNotFoundError reports whether err is S3's answer for a missing key.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// handle stages bytes for a single PutObject.
type handle struct {
	store  *Store
	ctx    context.Context
	key    string
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, fmt.Errorf("s3 handle %s: %w", h.key, errHandleClosed)
	}
	return h.buf.Write(p)
}

// Close uploads the staged bytes. The upload error is the close error.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("s3 handle %s: %w", h.key, errHandleClosed)
	}
	h.closed = true

	data := h.buf.Bytes()
	err := h.store.put(h.ctx, h.key, data)
	h.buf = bytes.Buffer{}
	return err
}

// Abort drops the staged bytes. Nothing is uploaded.
func (h *handle) Abort() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("s3 handle %s: %w", h.key, errHandleClosed)
	}
	h.closed = true
	h.buf = bytes.Buffer{}

	logger.Debug("S3 upload discarded", logger.Bucket(h.store.bucket), logger.Key(h.key))
	return nil
}

var (
	_ storage.Store     = (*Store)(nil)
	_ storage.Aborter   = (*handle)(nil)
	_ consistency.Guard = (*Store)(nil)
)
