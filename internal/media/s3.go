package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

var _ Store = (*S3)(nil)

// S3Config selects the bucket and how to reach it. Endpoint and PathStyle
// are for S3-compatible servers such as MinIO or LocalStack.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string

	// RequestTimeout bounds HeadObject calls. Defaults to 30s.
	RequestTimeout time.Duration
}

// objectAPI is the subset of *s3.Client used by S3.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3 reads videos from "<prefix><id>.mp4" objects in a bucket.
type S3 struct {
	client  objectAPI
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewS3 loads the default AWS configuration (environment, shared config,
// instance roles) and applies cfg on top of it. Static keys in cfg take
// precedence over the default credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media: s3 bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3(client, cfg), nil
}

func newS3(client objectAPI, cfg S3Config) *S3 {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, timeout: timeout}
}

func (s *S3) key(id string) string {
	return s.prefix + id + Extension
}

// Open implements Store. The body streams under ctx, so no request timeout
// is applied here.
func (s *S3) Open(ctx context.Context, id string) (*Video, error) {
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("media: s3 get %q: %w", id, err)
	}
	v := &Video{
		ReadCloser:  out.Body,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ModTime:     aws.ToTime(out.LastModified),
	}
	if v.ContentType == "" {
		v.ContentType = ContentType
	}
	return v, nil
}

// Exists implements Store.
func (s *S3) Exists(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("media: s3 head %q: %w", id, err)
	}
	return true, nil
}

// isNotFound matches NoSuchKey from GetObject and the bare 404 "NotFound"
// that HeadObject returns.
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
