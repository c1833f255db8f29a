package auth

import (
	stderrors "errors"

	"github.com/kochabx/studycore/errors"
)

var (
	// ErrLoginRequired means the session is gone and the user has to sign in.
	ErrLoginRequired = errors.LoginRequired("sign in again to continue")
	ErrNoSession     = stderrors.New("auth: no session")
	ErrInvalidToken  = errors.TokenInvalid("access token failed validation")
)

// RefreshError reports a failed refresh. RequiresLogin is set when the
// provider rejected the refresh token itself.
type RefreshError struct {
	RequiresLogin bool
	Code          string
	Err           error
}

func (e *RefreshError) Error() string {
	msg := "auth: refresh failed"
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RefreshError) Unwrap() error {
	if e.RequiresLogin {
		return ErrLoginRequired
	}
	return e.Err
}

// loginCodes are OAuth error codes that cannot be fixed by retrying.
var loginCodes = map[string]bool{
	"invalid_grant":        true,
	"invalid_token":        true,
	"interaction_required": true,
	"login_required":       true,
}
