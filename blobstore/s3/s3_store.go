package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/segbloom/blobstore"
)

// Client is the subset of the S3 API used by Store.
// *s3.Client satisfies it.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures a Store.
type Options struct {
	// Prefix is prepended to all keys (e.g. "ingest/").
	Prefix string

	// Region overrides the region from the default AWS configuration (New only).
	Region string

	// PartSize enables parallel ranged downloads with parts of this size.
	// The object is spooled to a temporary file before reading. 0 streams
	// the object with a single GetObject call.
	PartSize int64

	// Concurrency is the number of parts fetched in parallel (default 5).
	Concurrency int

	// SpoolDir is the directory for spool files (default os.TempDir()).
	SpoolDir string
}

// Option configures a Store.
type Option func(*Options)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithPartSize enables parallel ranged downloads.
func WithPartSize(partSize int64, concurrency int) Option {
	return func(o *Options) {
		o.PartSize = partSize
		o.Concurrency = concurrency
	}
}

// WithSpoolDir sets the directory for spool files.
func WithSpoolDir(dir string) Option {
	return func(o *Options) { o.SpoolDir = dir }
}

// Store implements blobstore.Store for S3.
type Store struct {
	client Client
	bucket string
	opts   Options
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return NewStore(s3.NewFromConfig(cfg), bucket, optFns...), nil
}

// NewStore creates a Store from an existing client.
func NewStore(client Client, bucket string, optFns ...Option) *Store {
	opts := Options{Concurrency: manager.DefaultDownloadConcurrency}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = manager.DefaultDownloadConcurrency
	}

	return &Store{
		client: client,
		bucket: bucket,
		opts:   opts,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.opts.Prefix, name)
}

// Open opens the named object for sequential reading.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.opts.PartSize > 0 {
		return s.download(ctx, name)
	}

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, translateError(err)
	}

	return resp.Body, nil
}

// download fetches the object in parallel parts into a spool file.
func (s *Store) download(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.CreateTemp(s.opts.SpoolDir, "segbloom-s3-*")
	if err != nil {
		return nil, err
	}

	d := manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = s.opts.PartSize
		d.Concurrency = s.opts.Concurrency
	})

	if _, err := d.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	}); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, translateError(err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, err
	}

	return &spoolFile{File: f}, nil
}

// spoolFile removes itself on Close.
type spoolFile struct {
	*os.File
}

func (f *spoolFile) Close() error {
	err := f.File.Close()
	if rmErr := os.Remove(f.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

func translateError(err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return errors.Join(blobstore.ErrNotFound, err)
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return errors.Join(blobstore.ErrNotFound, err)
	}
	return err
}
