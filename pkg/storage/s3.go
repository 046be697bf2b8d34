package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds bucket and credential settings. Empty keys fall back to
// the default AWS credential chain.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // S3-compatible endpoint override
	PathStyle       bool
	PublicURL       string // overrides the URL returned by PutObject
}

// s3API is the subset of *s3.Client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 is a Sink backed by Amazon S3 or a compatible service.
type S3 struct {
	cfg    S3Config
	client s3API
}

// NewS3 builds an S3 sink from cfg.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("storage: region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3{cfg: cfg, client: client}, nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(cfg S3Config, client s3API) *S3 {
	return &S3{cfg: cfg, client: client}
}

// PutObject uploads data under key and returns its URL.
func (s *S3) PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return s.URL(key), nil
}

// URL returns the public URL of key.
func (s *S3) URL(key string) string {
	switch {
	case s.cfg.PublicURL != "":
		return joinURL(s.cfg.PublicURL, key)
	case s.cfg.Endpoint != "" && s.cfg.PathStyle:
		return joinURL(joinURL(s.cfg.Endpoint, s.cfg.Bucket), key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
	}
}

var _ Sink = (*S3)(nil)
