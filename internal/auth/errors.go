package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned by Authenticate for unknown usernames,
// deactivated accounts and wrong passwords alike.  The three cases are
// deliberately indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthorizationError reports that a session or a permission check failed.
// It carries the failure reason and, for permission failures, the name of
// the permission the operation required, so a caller can render an
// actionable message.
type AuthorizationError struct {
	Reason             string
	RequiredPermission Permission
}

func (e *AuthorizationError) Error() string {
	if e.RequiredPermission != "" {
		return fmt.Sprintf("authorization failed: %s (requires %s)", e.Reason, e.RequiredPermission)
	}
	return "authorization failed: " + e.Reason
}
