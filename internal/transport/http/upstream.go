package http

import (
	"context"
	"errors"
	"net/url"

	apierrors "gadevtools/internal/errors"
	"gadevtools/internal/metadata"
)

// upstreamFailure tags a transport failure or an unusable document from an
// external API so it is answered with 502. Other errors are returned as is.
func upstreamFailure(service string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr):
		return apierrors.NewNetworkError(service+" is unreachable", err).WithContext("service", service)
	case errors.Is(err, metadata.ErrInvalidDocument):
		return apierrors.NewUpstreamError(service+" returned an unusable document", err).WithContext("service", service)
	}
	return err
}
