package services

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/cadeo/cadeo-dashboard/config"
)

// S3Service reads dashboard CSV files from an S3 bucket
type S3Service struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Service creates an S3-backed file opener from the application config
func NewS3Service(ctx context.Context, cfg *appConfig.Config) (*S3Service, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.AWSRegion),
	}
	// Fall back to the default credential chain (instance role, shared
	// profile) when no static keys are configured.
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Service{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.AWSS3Bucket,
		prefix: cfg.AWSS3Prefix,
	}, nil
}

// Open streams the object stored under name
func (s *S3Service) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := s.prefix + name
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

// Describe names the location files are read from
func (s *S3Service) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}
