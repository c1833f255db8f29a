package storage

import (
	"context"
	"os"
)

// QuotaEstimator reports the platform's view of storage usage and limit.
type QuotaEstimator interface {
	Estimate(ctx context.Context) (QuotaEstimate, error)
}

// EstimateQuota asks the platform estimator first and falls back to summing
// the serialized size of every record.
func (f *Facade) EstimateQuota(ctx context.Context) QuotaEstimate {
	if f.estimator != nil {
		est, err := f.estimator.Estimate(ctx)
		if err == nil {
			return est
		}
		f.logger.Warn().Err(err).Msg("platform quota estimate unavailable")
	}

	var usage int64
	recs, err := f.kv.GetAll(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("estimate usage failed")
	}
	for _, r := range recs {
		usage += r.Size()
	}

	quota := f.kv.Quota()
	if quota <= 0 {
		quota = f.cfg.FallbackQuotaBytes
	}
	return QuotaEstimate{
		Usage:       usage,
		Quota:       quota,
		PercentUsed: percent(usage, quota),
		Source:      "records",
	}
}

// DiskEstimator estimates from the database files and the free space of the
// filesystem holding them.
type DiskEstimator struct {
	// Path of the sqlite database; -wal and -shm siblings are counted too.
	Path string
}

func (d DiskEstimator) usage() (int64, error) {
	var total int64
	for _, p := range []string{d.Path, d.Path + "-wal", d.Path + "-shm"} {
		fi, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) && p != d.Path {
				continue
			}
			return 0, err
		}
		total += fi.Size()
	}
	return total, nil
}
