package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	// ErrObjectNotFound is returned when the requested key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidKey rejects empty keys and keys escaping the prefix.
	ErrInvalidKey = errors.New("invalid object key")
)

// S3API is the part of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Source reads import files from one bucket.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates a source over bucket. Keys are resolved under prefix.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// Open streams the object stored under key. The caller closes the body.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if key == "" || strings.Contains(key, "..") {
		return nil, fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s%s", ErrObjectNotFound, s.bucket, s.prefix, key)
		}
		return nil, fmt.Errorf("getting object from S3 bucket %s: %w", s.bucket, err)
	}
	return out.Body, nil
}

// Archive stores a copy of an uploaded import file under key.
func (s *S3Source) Archive(ctx context.Context, key string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        body,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3 bucket %s: %w", s.bucket, err)
	}
	return nil
}
