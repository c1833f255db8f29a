//go:build unix

package storage

import (
	"context"
	"path/filepath"

	"golang.org/x/sys/unix"
)

func (d DiskEstimator) Estimate(ctx context.Context) (QuotaEstimate, error) {
	usage, err := d.usage()
	if err != nil {
		return QuotaEstimate{}, err
	}

	var st unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(d.Path), &st); err != nil {
		return QuotaEstimate{}, err
	}
	quota := usage + int64(st.Bavail)*int64(st.Bsize)

	return QuotaEstimate{
		Usage:       usage,
		Quota:       quota,
		PercentUsed: percent(usage, quota),
		Source:      "statfs",
	}, nil
}
