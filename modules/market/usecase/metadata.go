package usecase

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
)

const (
	maxMetadataNameLength        = 256
	maxMetadataDescriptionLength = 4096
)

type StoreMetadataParams struct {
	Name        string
	Description string
	// Image is a content reference to the asset image, e.g. an ipfs:// URI.
	Image string
}

// MetadataDocument is the canonical metadata shape stored in the blob store.
// The content hash of its JSON encoding is what mint intents reference.
type MetadataDocument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// StoreMetadata assembles and stores an asset metadata document, returning
// the content hash a mint intent should reference.
func (u *Usecase) StoreMetadata(ctx context.Context, params StoreMetadataParams) (string, error) {
	var errList []error
	if params.Name == "" {
		errList = append(errList, errors.Wrap(errs.ArgumentRequired, "name is required"))
	}
	if len(params.Name) > maxMetadataNameLength {
		errList = append(errList, errors.Wrapf(errs.InvalidArgument, "name exceeds %d bytes", maxMetadataNameLength))
	}
	if len(params.Description) > maxMetadataDescriptionLength {
		errList = append(errList, errors.Wrapf(errs.InvalidArgument, "description exceeds %d bytes", maxMetadataDescriptionLength))
	}
	if err := errors.Join(errList...); err != nil {
		return "", errors.WithStack(err)
	}

	data, err := json.Marshal(MetadataDocument{
		Name:        params.Name,
		Description: params.Description,
		Image:       params.Image,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode metadata document")
	}

	contentHash, err := u.blobStore.Put(ctx, data)
	if err != nil {
		return "", errors.Wrap(err, "failed to store metadata")
	}
	return contentHash, nil
}

// GetMetadata resolves a metadata content hash back to the stored document.
func (u *Usecase) GetMetadata(ctx context.Context, contentHash string) ([]byte, error) {
	data, err := u.blobStore.Get(ctx, contentHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get metadata")
	}
	return data, nil
}
