package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/snarg/scribed/internal/config"
)

// S3Store keeps uploads in an S3-compatible object store, for deployments
// where the server and workers share no filesystem.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewS3Store creates an S3 upload store from config.
func NewS3Store(cfg config.S3, log zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log.With().Str("component", "s3-store").Logger(),
	}, nil
}

// HeadBucket checks that the bucket exists and credentials are valid.
func (s *S3Store) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket})
	return err
}

func (s *S3Store) Save(ctx context.Context, key string, data []byte, contentType string) error {
	objKey := s.objectKey(key)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &objKey,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	return err
}

func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey := s.objectKey(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return out.Body, nil
}

func (s *S3Store) Find(ctx context.Context, taskID string) (string, error) {
	prefix := s.objectKey(taskID)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &s.bucket,
		Prefix:  &prefix,
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("list uploads: %w", err)
	}
	if len(out.Contents) == 0 || out.Contents[0].Key == nil {
		return "", ErrNotFound
	}
	return strings.TrimPrefix(*out.Contents[0].Key, s.keyPrefix()), nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	objKey := s.objectKey(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
	})
	return err
}

func (s *S3Store) Type() string { return "s3" }

func (s *S3Store) objectKey(key string) string {
	return s.keyPrefix() + key
}

func (s *S3Store) keyPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return strings.TrimRight(s.prefix, "/") + "/"
}
