package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	appconfig "github.com/semmidev/s3cleaner/internal/config"
	"github.com/semmidev/s3cleaner/internal/domain"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

type CredentialsSource interface {
	Load() appconfig.Credentials
}

type S3Store struct {
	client S3API
}

func NewS3Store(client S3API) *S3Store {
	return &S3Store{client: client}
}

// ListPage fetches one page of keys under prefix, continuing from token.
func (s *S3Store) ListPage(ctx context.Context, bucket, prefix, token string) (domain.ObjectPage, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	resp, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return domain.ObjectPage{}, classify("list objects", bucket, "", err)
	}

	page := domain.ObjectPage{
		Objects:   make([]domain.ObjectRecord, 0, len(resp.Contents)),
		Truncated: aws.ToBool(resp.IsTruncated),
		NextToken: aws.ToString(resp.NextContinuationToken),
	}
	for _, obj := range resp.Contents {
		page.Objects = append(page.Objects, domain.ObjectRecord{
			Key:          aws.ToString(obj.Key),
			LastModified: obj.LastModified,
			Size:         obj.Size,
		})
	}

	return page, nil
}

func (s *S3Store) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete object", bucket, key, err)
	}
	return nil
}

// DeleteObjects issues a single batch delete. Per-key failures reported by
// S3 come back in BatchResult.Failed; only a failure of the call itself is
// returned as an error.
func (s *S3Store) DeleteObjects(ctx context.Context, bucket string, keys []string) (domain.BatchResult, error) {
	if len(keys) > domain.MaxBatchSize {
		return domain.BatchResult{}, fmt.Errorf("batch of %d keys exceeds limit of %d", len(keys), domain.MaxBatchSize)
	}

	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
	}

	resp, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(bucket),
		Delete: &types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(false),
		},
	})
	if err != nil {
		return domain.BatchResult{}, classify("delete objects", bucket, "", err)
	}

	result := domain.BatchResult{
		Deleted: make([]string, 0, len(resp.Deleted)),
	}
	for _, obj := range resp.Deleted {
		result.Deleted = append(result.Deleted, aws.ToString(obj.Key))
	}
	for _, e := range resp.Errors {
		result.Failed = append(result.Failed, domain.ObjectFailure{
			Key:     aws.ToString(e.Key),
			Code:    aws.ToString(e.Code),
			Message: aws.ToString(e.Message),
		})
	}

	return result, nil
}

var retryables = retry.IsErrorRetryables(retry.DefaultRetryables)

// classify maps an SDK error onto one of the domain error kinds.
func classify(op, bucket, key string, err error) error {
	kind := domain.ErrStorage

	var apiErr smithy.APIError
	var respErr *awshttp.ResponseError
	switch {
	case errors.As(err, &apiErr) && kindForCode(apiErr.ErrorCode()) != nil:
		kind = kindForCode(apiErr.ErrorCode())
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound:
		kind = domain.ErrNotFound
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusForbidden:
		kind = domain.ErrAccessDenied
	case retryables.IsErrorRetryable(err) == aws.TrueTernary:
		kind = domain.ErrTransient
	}

	return &domain.StorageError{Op: op, Bucket: bucket, Key: key, Kind: kind, Err: err}
}

func kindForCode(code string) error {
	switch code {
	case "NoSuchBucket", "NoSuchKey", "NotFound":
		return domain.ErrNotFound
	case "AccessDenied", "Forbidden", "AllAccessDisabled", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return domain.ErrAccessDenied
	}
	return nil
}

type S3Options struct {
	Endpoint       string
	UsePathStyle   bool
	MaxAttempts    int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func S3OptionsFromConfig(cfg appconfig.StorageConfig) S3Options {
	return S3Options{
		Endpoint:       cfg.Endpoint,
		UsePathStyle:   cfg.UsePathStyle,
		MaxAttempts:    cfg.MaxAttempts,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
	}
}

// S3Factory builds a new S3 client on every Open, resolving credentials
// at that moment.
type S3Factory struct {
	opts  S3Options
	creds CredentialsSource
}

func NewS3Factory(opts S3Options, creds CredentialsSource) *S3Factory {
	return &S3Factory{opts: opts, creds: creds}
}

func (f *S3Factory) Open(ctx context.Context) (domain.ObjectStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, f.loadOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if f.opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(f.opts.Endpoint)
		}
		o.UsePathStyle = f.opts.UsePathStyle
	})

	return NewS3Store(client), nil
}

func (f *S3Factory) loadOptions() []func(*config.LoadOptions) error {
	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = f.opts.ConnectTimeout
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.ResponseHeaderTimeout = f.opts.ReadTimeout
		})

	opts := []func(*config.LoadOptions) error{
		config.WithRetryMode(aws.RetryModeStandard),
		config.WithRetryMaxAttempts(f.opts.MaxAttempts),
		config.WithHTTPClient(httpClient),
	}

	creds := f.creds.Load()
	if creds.Region != "" {
		opts = append(opts, config.WithRegion(creds.Region))
	}
	if creds.HasStaticKeys() {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}

	return opts
}
