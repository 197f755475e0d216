package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when the request carries no session: flow
	// state has nowhere to live, so authentication cannot even start.
	ErrNoSession = errors.New("authentication requires session support")

	// ErrInvalidFlowState is returned when the session's flow state entry
	// cannot be decoded.
	ErrInvalidFlowState = errors.New("invalid flow state")
)

// AuthError represents an OAuth2/OIDC authorization error response returned
// by the provider on callback. See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthError struct {
	// Code is the top-level OAuth2/OIDC error code, "server_error" for
	// example.
	Code string

	// Description is the optional human readable error_description.
	Description string

	// URI is the optional error_uri with more information.
	URI string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization response error %q: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization response error %q", e.Code)
}
