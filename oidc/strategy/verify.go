package strategy

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oidcware/relay/oidc"
)

// VerifyMode selects the shape the verify func is invoked with. It is fixed
// at Strategy construction: whether a userinfo fetch happens and whether the
// http request is handed to the verify func are explicit configuration
// choices, not something inferred per request.
type VerifyMode int

const (
	// VerifyTokens invokes the verify func with the token set only.
	VerifyTokens VerifyMode = iota

	// VerifyTokensProfile additionally fetches userinfo claims, when the
	// token set carries an access token to fetch them with.
	VerifyTokensProfile

	// VerifyRequestTokens passes the originating http request along with the
	// token set.
	VerifyRequestTokens

	// VerifyRequestTokensProfile passes the request and fetches userinfo.
	VerifyRequestTokensProfile
)

// String implements the Stringer interface.
func (m VerifyMode) String() string {
	switch m {
	case VerifyTokens:
		return "tokens"
	case VerifyTokensProfile:
		return "tokens+profile"
	case VerifyRequestTokens:
		return "request+tokens"
	case VerifyRequestTokensProfile:
		return "request+tokens+profile"
	default:
		return fmt.Sprintf("unknown verify mode %d", int(m))
	}
}

func (m VerifyMode) valid() bool {
	return m >= VerifyTokens && m <= VerifyRequestTokensProfile
}

// wantsProfile reports whether the mode asks for a userinfo fetch. The fetch
// still only happens when the exchanged token set has an access token.
func (m VerifyMode) wantsProfile() bool {
	return m == VerifyTokensProfile || m == VerifyRequestTokensProfile
}

// wantsRequest reports whether the http request is passed to the verify
// func.
func (m VerifyMode) wantsRequest() bool {
	return m == VerifyRequestTokens || m == VerifyRequestTokensProfile
}

// VerifyContext carries the material the verify func examines. Which fields
// are populated is governed by the strategy's VerifyMode.
type VerifyContext struct {
	// Request is the originating http request, nil unless the mode passes
	// the request through.
	Request *http.Request

	// Tokens is the token set from the successful exchange. Never nil.
	Tokens *oidc.TokenSet

	// Profile is the userinfo claims, nil when the mode doesn't ask for them
	// or the token set had no access token to fetch them with.
	Profile map[string]interface{}
}

// VerifyResult is the verify func's answer.
type VerifyResult struct {
	// User is the authenticated principal. A nil User (or a nil result)
	// means the verify func rejected the authentication: a Fail outcome,
	// not an error.
	User interface{}

	// Info is optional additional information passed through to the Success
	// outcome.
	Info map[string]interface{}
}

// VerifyFunc is the application's verification step, invoked after a
// successful exchange. Returning an error produces an Error outcome;
// returning a nil result or nil User produces Fail; anything else produces
// Success.
type VerifyFunc func(ctx context.Context, vc *VerifyContext) (*VerifyResult, error)
