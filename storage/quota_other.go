//go:build !unix

package storage

import (
	"context"
	"errors"
)

func (d DiskEstimator) Estimate(ctx context.Context) (QuotaEstimate, error) {
	return QuotaEstimate{}, errors.New("storage: statfs not supported on this platform")
}
