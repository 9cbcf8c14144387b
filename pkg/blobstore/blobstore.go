package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
)

// Store is a content-addressed blob store. Put returns the hex-encoded
// SHA-256 of the stored bytes; Get resolves that hash back to the bytes.
type Store interface {
	Put(ctx context.Context, data []byte) (contentHash string, err error)
	Get(ctx context.Context, contentHash string) ([]byte, error)
}

type Config struct {
	Backend string     `mapstructure:"backend"` // Blob store backend. e.g. `s3` | `http`
	S3      S3Config   `mapstructure:"s3"`
	HTTP    HTTPConfig `mapstructure:"http"`
}

func New(ctx context.Context, config Config) (Store, error) {
	switch strings.ToLower(config.Backend) {
	case "s3":
		store, err := NewS3(ctx, config.S3)
		if err != nil {
			return nil, errors.Wrap(err, "can't create s3 blob store")
		}
		return store, nil
	case "http":
		store, err := NewHTTP(config.HTTP)
		if err != nil {
			return nil, errors.Wrap(err, "can't create http blob store")
		}
		return store, nil
	default:
		return nil, errors.Wrapf(errs.Unsupported, "%q blob store backend is not supported", config.Backend)
	}
}

// ContentHash returns the hex-encoded SHA-256 digest used as a blob key.
func ContentHash(data []byte) string {
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:])
}

// ValidateContentHash reports whether s is a well-formed blob key.
func ValidateContentHash(s string) error {
	if len(s) != sha256.Size*2 {
		return errors.Wrapf(errs.InvalidArgument, "content hash must be %d hex characters", sha256.Size*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return errors.Wrap(errs.InvalidArgument, "content hash is not valid hex")
	}
	return nil
}
