package httphandler

import (
	"github.com/cockroachdb/errors"
)

const (
	defaultPage  = int32(1)
	defaultLimit = int32(100)
)

type paginationRequest struct {
	Page  int32 `query:"page"`
	Limit int32 `query:"limit"`
}

func (req paginationRequest) Validate() error {
	var errList []error
	if req.Page < 0 {
		errList = append(errList, errors.Errorf("page must be positive"))
	}
	if req.Limit < 0 {
		errList = append(errList, errors.Errorf("limit must be positive"))
	}
	return errors.Join(errList...)
}

func (req *paginationRequest) ParseDefault() error {
	if req.Page == 0 {
		req.Page = defaultPage
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	return nil
}
