// Package storage writes generated artifacts to S3.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pricofy/code-generator/internal/domain"
)

const contentType = "text/plain; charset=utf-8"

// ObjectPutter is the subset of the S3 API used by Store.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store saves artifacts to an object store.
type Store struct {
	client ObjectPutter
	logger *slog.Logger
}

// New creates a Store.
func New(client ObjectPutter, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// NewS3Client builds an S3 client from the default AWS configuration.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// Save writes body to loc, replacing any existing object.
func (s *Store) Save(ctx context.Context, loc domain.StorageLocation, body string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(loc.Bucket),
		Key:         aws.String(loc.Key),
		Body:        strings.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		// Detail goes back to the caller, not into this log line.
		s.logger.ErrorContext(ctx, "error when saving the code to s3")
		return fmt.Errorf("failed to put s3://%s/%s: %w", loc.Bucket, loc.Key, err)
	}

	s.logger.InfoContext(ctx, "code saved to s3", "bucket", loc.Bucket, "key", loc.Key)
	return nil
}

// ObjectKey builds the key for an artifact created at t, e.g.
// "code-output/090503.py". A non-empty suffix is joined with a dash
// before the extension.
func ObjectKey(prefix, ext string, t time.Time, suffix string) string {
	key := prefix + t.Format("150405")
	if suffix != "" {
		key += "-" + suffix
	}
	return key + ext
}
