package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrNotSeekable is returned when an upload retry is impossible because the
// data source cannot be rewound.
var ErrNotSeekable = errors.New("storage: upload body is not seekable, cannot retry")

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	// PublicURLs selects permanent public object URLs over presigned ones.
	PublicURLs bool
	// SignedURLTTL is the lifetime of presigned URLs. Defaults to 24h.
	SignedURLTTL time.Duration
	// MaxRetries bounds upload retry attempts on transient failures.
	MaxRetries int
	// BaseBackoff is the initial retry delay. Defaults to 1s.
	BaseBackoff time.Duration
}

// Compile-time check that S3Storage implements Storage.
var _ Storage = (*S3Storage)(nil)

// S3Storage stores produced outputs in an S3-compatible bucket.
type S3Storage struct {
	client      *s3.Client
	presigner   *s3.PresignClient
	bucket      string
	region      string
	endpoint    string
	publicURLs  bool
	signedTTL   time.Duration
	maxRetries  int
	baseBackoff time.Duration
}

// NewS3Storage creates a new S3Storage instance.
func NewS3Storage(cfg S3Config) (*S3Storage, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	signedTTL := cfg.SignedURLTTL
	if signedTTL <= 0 {
		signedTTL = 24 * time.Hour
	}
	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 1 * time.Second
	}

	return &S3Storage{
		client:      client,
		presigner:   s3.NewPresignClient(client),
		bucket:      cfg.Bucket,
		region:      cfg.Region,
		endpoint:    cfg.Endpoint,
		publicURLs:  cfg.PublicURLs,
		signedTTL:   signedTTL,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: baseBackoff,
	}, nil
}

// Upload writes data to the bucket, overwriting any existing object.
// Transient failures are retried with exponential backoff when the body can
// be rewound.
func (s *S3Storage) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	seeker, seekable := data.(io.Seeker)

	var lastErr error
	backoff := s.baseBackoff

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if !seekable {
				return fmt.Errorf("%w: %w", ErrNotSeekable, lastErr)
			}
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return fmt.Errorf("rewind upload body: %w", err)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        data,
			ContentType: aws.String(contentType),
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("upload to S3: %w", err)
		}
	}

	return fmt.Errorf("upload to S3: max retries exceeded: %w", lastErr)
}

// ObjectURL returns a presigned GET URL, or a permanent public URL when the
// bucket is configured for public access.
func (s *S3Storage) ObjectURL(ctx context.Context, key string) (string, error) {
	if s.publicURLs {
		if s.endpoint != "" {
			return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key), nil
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.signedTTL))
	if err != nil {
		return "", fmt.Errorf("presign object URL: %w", err)
	}

	return req.URL, nil
}
