package blobstore

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common/errs"
	"github.com/mintline/marketplace-indexer/pkg/httpclient"
)

type HTTPConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// HTTPStore talks to a blob gateway over HTTP. The gateway is expected to key
// blobs by their SHA-256 content hash.
type HTTPStore struct {
	httpClient *httpclient.Client
}

var _ Store = (*HTTPStore)(nil)

func NewHTTP(config HTTPConfig) (*HTTPStore, error) {
	if config.BaseURL == "" {
		return nil, errors.Wrap(errs.ArgumentRequired, "blob_store.http.base_url config is required")
	}
	httpClient, err := httpclient.New(config.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "can't create http client")
	}
	return &HTTPStore{httpClient: httpClient}, nil
}

type putBlobResult struct {
	ContentHash string `json:"contentHash"`
}

func (s *HTTPStore) Put(ctx context.Context, data []byte) (string, error) {
	contentHash := ContentHash(data)
	resp, err := s.httpClient.Put(ctx, "/v1/blobs/"+contentHash, httpclient.RequestOptions{
		Body: data,
	})
	if err != nil {
		return "", errors.Wrap(err, "can't send request")
	}
	if resp.StatusCode() >= 400 {
		return "", errors.Wrapf(errs.InternalError, "blob gateway rejected put, status: %d", resp.StatusCode())
	}

	var result putBlobResult
	if err := resp.UnmarshalBody(&result); err != nil {
		return "", errors.Wrap(err, "can't unmarshal response body")
	}
	if result.ContentHash != contentHash {
		return "", errors.Wrapf(errs.InternalError, "blob gateway returned mismatched content hash: %s", result.ContentHash)
	}
	return contentHash, nil
}

func (s *HTTPStore) Get(ctx context.Context, contentHash string) ([]byte, error) {
	if err := ValidateContentHash(contentHash); err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := s.httpClient.Get(ctx, "/v1/blobs/"+contentHash, httpclient.RequestOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "can't send request")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, errors.Wrapf(errs.NotFound, "blob not found, content hash: %s", contentHash)
	}
	if resp.StatusCode() >= 400 {
		return nil, errors.Wrapf(errs.InternalError, "blob gateway rejected get, status: %d", resp.StatusCode())
	}

	data := resp.Body()
	if ContentHash(data) != contentHash {
		return nil, errors.Wrapf(errs.InternalError, "blob content does not match its hash, content hash: %s", contentHash)
	}
	return data, nil
}
