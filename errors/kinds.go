package errors

// Reasons of the persistence and sync core.
const (
	ReasonStoreUnavailable        = "STORE_UNAVAILABLE"
	ReasonQuotaExceeded           = "QUOTA_EXCEEDED"
	ReasonWriteFailure            = "WRITE_FAILURE"
	ReasonReadFailure             = "READ_FAILURE"
	ReasonTokenInvalid            = "TOKEN_INVALID"
	ReasonTokenExpired            = "TOKEN_EXPIRED"
	ReasonLoginRequired           = "LOGIN_REQUIRED"
	ReasonNetworkTimeout          = "NETWORK_TIMEOUT"
	ReasonNetworkFailure          = "NETWORK_FAILURE"
	ReasonMigrationPartialFailure = "MIGRATION_PARTIAL_FAILURE"
)

// StoreUnavailable is fatal to persistence and surfaced once at init.
func StoreUnavailable(format string, args ...any) *Error {
	return NewReason(503, ReasonStoreUnavailable, format, args...)
}

// QuotaExceeded is recoverable through cleanup and retry.
func QuotaExceeded(format string, args ...any) *Error {
	return NewReason(507, ReasonQuotaExceeded, format, args...)
}

func WriteFailure(format string, args ...any) *Error {
	return NewReason(500, ReasonWriteFailure, format, args...)
}

func ReadFailure(format string, args ...any) *Error {
	return NewReason(500, ReasonReadFailure, format, args...)
}

func TokenInvalid(format string, args ...any) *Error {
	return NewReason(401, ReasonTokenInvalid, format, args...)
}

func TokenExpired(format string, args ...any) *Error {
	return NewReason(401, ReasonTokenExpired, format, args...)
}

// LoginRequired means re-authentication is needed, retrying will not help.
func LoginRequired(format string, args ...any) *Error {
	return NewReason(401, ReasonLoginRequired, format, args...)
}

func NetworkTimeout(format string, args ...any) *Error {
	return NewReason(408, ReasonNetworkTimeout, format, args...)
}

func NetworkFailure(format string, args ...any) *Error {
	return NewReason(502, ReasonNetworkFailure, format, args...)
}

// MigrationPartialFailure is non-fatal: a subset of legacy keys did not migrate.
func MigrationPartialFailure(format string, args ...any) *Error {
	return NewReason(207, ReasonMigrationPartialFailure, format, args...)
}

// Generic HTTP constructors

func BadRequest(format string, args ...any) *Error {
	return New(400, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(401, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(404, format, args...)
}

func Internal(format string, args ...any) *Error {
	return New(500, format, args...)
}

func ServiceUnavailable(format string, args ...any) *Error {
	return New(503, format, args...)
}

// IsRetryable reports whether err is a transient network or server condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch Reason(err) {
	case ReasonNetworkTimeout, ReasonNetworkFailure:
		return true
	case ReasonLoginRequired, ReasonTokenInvalid, ReasonTokenExpired:
		return false
	}
	switch c := Code(err); {
	case c == 401:
		return false
	case c == 408, c == 429, c >= 500 && c != 507:
		return true
	}
	return false
}
