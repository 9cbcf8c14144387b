package blobstore

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
)

type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// S3Store stores blobs as S3 objects keyed by content hash.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	keyPrefix  string
}

var _ Store = (*S3Store)(nil)

func NewS3(ctx context.Context, config S3Config) (*S3Store, error) {
	if config.Bucket == "" {
		return nil, errors.Wrap(errs.ArgumentRequired, "blob_store.s3.bucket config is required")
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't load aws user config")
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if config.Region != "" {
			o.Region = config.Region
		}
	})

	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     config.Bucket,
		keyPrefix:  config.KeyPrefix,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, data []byte) (string, error) {
	contentHash := ContentHash(data)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + contentHash),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to put object, key: %s", s.keyPrefix+contentHash)
	}
	return contentHash, nil
}

func (s *S3Store) Get(ctx context.Context, contentHash string) ([]byte, error) {
	if err := ValidateContentHash(contentHash); err != nil {
		return nil, errors.WithStack(err)
	}
	buffer := manager.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.Download(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.keyPrefix + contentHash),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, errors.Wrapf(errs.NotFound, "blob not found, content hash: %s", contentHash)
		}
		return nil, errors.Wrapf(err, "failed to get object, key: %s", s.keyPrefix+contentHash)
	}

	data := buffer.Bytes()

	// Verify integrity before returning, the store is content addressed.
	if ContentHash(data) != contentHash {
		return nil, errors.Wrapf(errs.InternalError, "blob content does not match its hash, content hash: %s", contentHash)
	}
	return data, nil
}
