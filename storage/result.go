package storage

import (
	"github.com/kochabx/studycore/errors"
)

// Result of a facade operation. Failures carry the reason of the error
// taxonomy instead of a Go error.
type Result struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Err converts a failed result back into a coded error.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	code := 500
	switch r.Reason {
	case errors.ReasonStoreUnavailable:
		code = 503
	case errors.ReasonQuotaExceeded:
		code = 507
	}
	return errors.NewReason(code, r.Reason, "%s", r.Error)
}

type SaveResult struct {
	Result
	QuotaExceeded  bool    `json:"quotaExceeded,omitempty"`
	CurrentUsageMB float64 `json:"currentUsageMB,omitempty"`
	Cleaned        int64   `json:"cleaned,omitempty"`
	Message        string  `json:"message,omitempty"`
}

type LoadResult struct {
	Result
	Found bool `json:"found"`
}

type QuotaEstimate struct {
	Usage       int64   `json:"usage"`
	Quota       int64   `json:"quota"`
	PercentUsed float64 `json:"percentUsed"`
	Source      string  `json:"source"`
}

type InitResult struct {
	Result
	Migrated          int      `json:"migrated"`
	Failed            []string `json:"failed,omitempty"`
	MigrationComplete bool     `json:"migrationComplete"`
}

func fail(reason string, err error) Result {
	r := Result{Reason: reason}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func toMB(b int64) float64 {
	return float64(b) / (1024 * 1024)
}

func percent(usage, quota int64) float64 {
	if quota <= 0 {
		return 0
	}
	return float64(usage) / float64(quota) * 100
}
