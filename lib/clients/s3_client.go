package clients

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrObjectNotFound is returned by GetObject when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// S3API is the subset of the SDK client the blob helpers call.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3ClientInterface defines the blob operations used across the library.
type S3ClientInterface interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
	ObjectExists(ctx context.Context, bucket, key string) (bool, error)
}

// S3Client wraps the AWS S3 client with our custom methods
type S3Client struct {
	svc S3API
}

// NewS3Client creates a new S3 client instance
func NewS3Client(settings Settings) *S3Client {
	return &S3Client{svc: newS3SDKClient(mustLoad(settings), settings.IsLocal)}
}

// NewS3ClientFromAPI wraps an existing SDK client (or a test double).
func NewS3ClientFromAPI(svc S3API) *S3Client {
	return &S3Client{svc: svc}
}

func newS3SDKClient(cfg aws.Config, isLocal bool) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = isLocal
	})
}

// GetObject reads the whole object body.
func (client *S3Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := client.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("s3://%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return body, nil
}

// PutObject writes body under bucket/key.
func (client *S3Client) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := client.svc.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

// ObjectExists checks if an object exists in S3
func (client *S3Client) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := client.svc.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// S3Uploader presigns uploads with dedicated uploader credentials so that
// the URLs do not expire with the Lambda's session credentials.
type S3Uploader struct {
	presignClient *s3.PresignClient
}

// NewS3Uploader builds the uploader from the S3_UPLOADER secret, formatted
// as "<accessKeyId>|<secretAccessKey>".
func NewS3Uploader(settings Settings, secret string) (*S3Uploader, error) {
	parts := strings.Split(secret, "|")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.New("S3_UPLOADER secret must be <accessKeyId>|<secretAccessKey>")
	}
	cfg, err := LoadAWSConfig(context.Background(), settings,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(parts[0], parts[1], "")))
	if err != nil {
		return nil, err
	}
	return &S3Uploader{presignClient: s3.NewPresignClient(newS3SDKClient(cfg, settings.IsLocal))}, nil
}

// GenerateUploadURL creates a presigned URL for uploading a file to S3
func (u *S3Uploader) GenerateUploadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	presignResult, err := u.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return presignResult.URL, nil
}

// GenerateDownloadURL creates a presigned URL for downloading a file from S3
func (u *S3Uploader) GenerateDownloadURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	presignResult, err := u.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", err
	}
	return presignResult.URL, nil
}
