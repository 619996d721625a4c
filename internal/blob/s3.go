// Package blob provides access to the object store holding raw scan results.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/surfaceops/surface-api/internal/domain/model"
)

// ErrBlobNotFound is returned when the referenced object no longer exists.
var ErrBlobNotFound = errors.New("result blob not found")

// Options configures an S3Store.
type Options struct {
	Region string
	// Endpoint overrides the AWS endpoint, for MinIO or localstack.
	Endpoint  string
	PathStyle bool
	// MaxObjectSize caps how many bytes Read will accept. Zero means 64 MiB.
	MaxObjectSize int64
	Logger        *slog.Logger
}

const defaultMaxObjectSize = 64 << 20

// S3Store reads and deletes result blobs in S3-compatible storage. Workers
// upload results directly; the ingestion pipeline is the only reader and the
// only component that deletes.
type S3Store struct {
	client  *s3.Client
	maxSize int64
	logger  *slog.Logger
}

// NewS3Store builds a store from the default AWS credential chain.
func NewS3Store(ctx context.Context, opts Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: opts.PathStyle,
					SigningRegion:     opts.Region,
					Source:            aws.EndpointSourceCustom,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
	})

	maxSize := opts.MaxObjectSize
	if maxSize <= 0 {
		maxSize = defaultMaxObjectSize
	}
	return &S3Store{client: client, maxSize: maxSize, logger: opts.Logger}, nil
}

// Read fetches the full blob body.
func (s *S3Store) Read(ctx context.Context, ref model.ResultRef) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("get object %s/%s: %w", ref.Bucket, ref.Path, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", ref.Bucket, ref.Path, err)
	}
	if int64(len(body)) > s.maxSize {
		return nil, fmt.Errorf("object %s/%s exceeds %d byte limit", ref.Bucket, ref.Path, s.maxSize)
	}
	return body, nil
}

// Delete removes a blob once its contents are persisted. Deleting an already
// absent key is not an error.
func (s *S3Store) Delete(ctx context.Context, ref model.ResultRef) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Path),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", ref.Bucket, ref.Path, err)
	}
	if s.logger != nil {
		s.logger.DebugContext(ctx, "result blob deleted", "bucket", ref.Bucket, "path", ref.Path)
	}
	return nil
}
