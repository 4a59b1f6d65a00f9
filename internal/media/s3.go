package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var errMissingBucket = errors.New("media.s3.missing_bucket")

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Host stores media in an S3-compatible bucket.
type S3Host struct {
	client        s3API
	bucket        string
	publicBaseURL string
}

// NewS3Host builds a client from static credentials, or the default chain when none are set.
func NewS3Host(ctx context.Context, configuration S3Config) (*S3Host, error) {
	if strings.TrimSpace(configuration.Bucket) == "" {
		return nil, errMissingBucket
	}
	region := configuration.Region
	if region == "" {
		region = "auto"
	}
	loadOptions := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if configuration.AccessKey != "" && configuration.SecretKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(configuration.AccessKey, configuration.SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("media.s3.load_config: %w", err)
	}
	endpoint := strings.TrimRight(configuration.Endpoint, "/")
	client := s3.NewFromConfig(awsConfig, func(options *s3.Options) {
		if endpoint != "" {
			options.BaseEndpoint = aws.String(endpoint)
			options.UsePathStyle = true
		}
	})
	return newS3Host(client, configuration.Bucket, publicBaseURL(configuration, endpoint, region)), nil
}

func newS3Host(client s3API, bucket string, baseURL string) *S3Host {
	return &S3Host{client: client, bucket: bucket, publicBaseURL: strings.TrimRight(baseURL, "/")}
}

func publicBaseURL(configuration S3Config, endpoint string, region string) string {
	switch {
	case configuration.PublicBaseURL != "":
		return configuration.PublicBaseURL
	case endpoint != "":
		return endpoint + "/" + configuration.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", configuration.Bucket, region)
	}
}

// Upload stores the file under <kind>/<uuid><ext>.
func (host *S3Host) Upload(ctx context.Context, upload Upload) (Asset, error) {
	if upload.Body == nil || upload.Size == 0 {
		return Asset{}, ErrEmptyUpload
	}
	if _, err := upload.Body.Seek(0, io.SeekStart); err != nil {
		return Asset{}, fmt.Errorf("media.s3.upload: %w", err)
	}
	key := fmt.Sprintf("%s/%s%s", upload.Kind, uuid.NewString(), extensionFor(upload))
	input := &s3.PutObjectInput{
		Bucket:        aws.String(host.bucket),
		Key:           aws.String(key),
		Body:          upload.Body,
		ContentLength: aws.Int64(upload.Size),
	}
	if upload.ContentType != "" {
		input.ContentType = aws.String(upload.ContentType)
	}
	if _, err := host.client.PutObject(ctx, input); err != nil {
		return Asset{}, fmt.Errorf("media.s3.upload: %w", err)
	}
	return Asset{URL: host.publicBaseURL + "/" + key, PublicID: key, Kind: upload.Kind}, nil
}

// Destroy deletes the object. Deleting a missing object succeeds.
func (host *S3Host) Destroy(ctx context.Context, publicID string, kind Kind) error {
	if strings.TrimSpace(publicID) == "" {
		return ErrEmptyPublicID
	}
	_, err := host.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(host.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("media.s3.destroy.%s: %w", kind, err)
	}
	return nil
}

// Ping checks that the bucket is reachable.
func (host *S3Host) Ping(ctx context.Context) error {
	if _, err := host.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(host.bucket)}); err != nil {
		return fmt.Errorf("media.s3.ping: %w", err)
	}
	return nil
}
