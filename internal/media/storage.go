package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxObjectSize is the largest image accepted for upload
const MaxObjectSize = 10 << 20

var (
	ErrEmptyObject       = errors.New("object is empty")
	ErrObjectTooLarge    = errors.New("object exceeds 10 MiB")
	ErrUnsupportedFormat = errors.New("unsupported image extension")
)

var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// UploadResult describes a stored object
type UploadResult struct {
	Key  string
	URL  string
	Size int
}

// ObjectStorage is where staged images end up
type ObjectStorage interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (UploadResult, error)
	Exists(ctx context.Context, key string) (bool, error)
	URL(key string) string
}

// ValidateObject checks size and extension before an upload
func ValidateObject(key string, body []byte) error {
	if len(body) == 0 {
		return ErrEmptyObject
	}
	if len(body) > MaxObjectSize {
		return fmt.Errorf("%w: %d bytes", ErrObjectTooLarge, len(body))
	}
	ext := strings.ToLower(path.Ext(key))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return nil
}

// S3Config holds bucket location and credentials
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the AWS endpoint, e.g. for MinIO
	Endpoint string
	// PublicBaseURL overrides the URL prefix returned for stored objects
	PublicBaseURL string
}

// S3Storage stores objects in an S3 bucket
type S3Storage struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewS3Storage creates an S3-backed object storage
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Storage{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// Upload puts body under key after validating it
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, body []byte) (UploadResult, error) {
	if err := ValidateObject(key, body); err != nil {
		return UploadResult{}, err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("s3 put %s: %w", key, err)
	}

	return UploadResult{Key: key, URL: s.URL(key), Size: len(body)}, nil
}

// Exists reports whether key is already in the bucket
func (s *S3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s: %w", key, err)
}

// URL returns the public URL for key
func (s *S3Storage) URL(key string) string {
	return s.baseURL + "/" + key
}
