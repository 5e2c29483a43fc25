package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.trai.ch/lpkg/internal/core/domain"
	"go.trai.ch/lpkg/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.RecordStore = (*S3Store)(nil)

// Environment variables holding static credentials for S3-compatible endpoints.
const (
	EnvAccessKeyID     = "LPKG_S3_ACCESS_KEY_ID"
	EnvSecretAccessKey = "LPKG_S3_SECRET_ACCESS_KEY"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// S3Store implements ports.RecordStore with one object per record in a bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates an S3Store from the store settings, using the default AWS credential chain.
// With a custom endpoint, static credentials are read from LPKG_S3_ACCESS_KEY_ID and
// LPKG_S3_SECRET_ACCESS_KEY when set, and path-style addressing is enabled.
func NewS3Store(ctx context.Context, settings domain.StoreSettings) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, config.WithRegion(settings.Region))
	}
	accessKey, secretKey := os.Getenv(EnvAccessKeyID), os.Getenv(EnvSecretAccessKey)
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load aws config")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreWithClient(client, settings.Bucket, settings.Prefix), nil
}

// NewS3StoreWithClient creates an S3Store on top of an existing client.
func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Location returns the s3:// URL of the record stored under id.
func (s *S3Store) Location(id string) string {
	key, err := s.key(id)
	if err != nil {
		return ""
	}
	return "s3://" + s.bucket + "/" + key
}

// Get downloads the record stored under id.
func (s *S3Store) Get(ctx context.Context, id string) (*domain.PackageRecord, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, zerr.With(zerr.Wrap(domain.ErrRecordNotFound, "failed to get record"), "id", id)
		}
		return nil, zerr.With(errors.Join(domain.ErrStoreReadFailed, err), "key", key)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, zerr.With(errors.Join(domain.ErrStoreReadFailed, err), "key", key)
	}
	return decode(id, data)
}

// Put uploads the record under id, replacing any previous object.
func (s *S3Store) Put(ctx context.Context, id string, record *domain.PackageRecord) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	data, err := encode(id, record)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return zerr.With(errors.Join(domain.ErrStoreWriteFailed, err), "key", key)
	}
	return nil
}

// List returns the sorted ids of the records of book, or of every book when book is empty.
func (s *S3Store) List(ctx context.Context, book string) ([]string, error) {
	listPrefix := path.Join(s.prefix, domain.PackagesDirName) + "/"
	if book != "" {
		if !domain.ValidBook(book) {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownBook, "failed to list records"), "book", book)
		}
		listPrefix += book + "/"
	}

	var ids []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, zerr.With(errors.Join(domain.ErrStoreReadFailed, err), "prefix", listPrefix)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), path.Join(s.prefix, domain.PackagesDirName)+"/")
			if id, ok := idFromKey(rel); ok {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *S3Store) key(id string) (string, error) {
	key, err := recordKey(id)
	if err != nil {
		return "", err
	}
	return path.Join(s.prefix, key), nil
}
