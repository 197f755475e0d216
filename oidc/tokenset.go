package oidc

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenExpirySkew defines the time skew used when checking a
// TokenSet's access token expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// TokenSet is the bundle of credentials returned from a successful
// authorization callback: the verified id_token, plus the access_token and
// optional refresh_token from the exchange. An implicit flow response may
// carry no access_token at all.
type TokenSet struct {
	idToken      IDToken
	accessToken  AccessToken
	refreshToken RefreshToken
	expiry       time.Time
}

// NewTokenSet creates a TokenSet from a verified id_token and the oauth2
// token returned by the exchange, which may be nil for flows that return
// tokens directly in the authorization response.
func NewTokenSet(idToken IDToken, t *oauth2.Token) (*TokenSet, error) {
	const op = "oidc.NewTokenSet"
	if idToken == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrMissingIDToken)
	}
	ts := &TokenSet{
		idToken: idToken,
	}
	if t != nil {
		ts.accessToken = AccessToken(t.AccessToken)
		ts.refreshToken = RefreshToken(t.RefreshToken)
		ts.expiry = t.Expiry
	}
	return ts, nil
}

// IDToken returns the verified id_token.
func (t *TokenSet) IDToken() IDToken { return t.idToken }

// AccessToken returns the access_token, which may be empty.
func (t *TokenSet) AccessToken() AccessToken { return t.accessToken }

// RefreshToken returns the refresh_token, which may be empty.
func (t *TokenSet) RefreshToken() RefreshToken { return t.refreshToken }

// Expiry returns the access token's expiration, which may be the zero value
// when the provider didn't report one.
func (t *TokenSet) Expiry() time.Time { return t.expiry }

// Expired returns true when the access token is expired, allowing for
// DefaultTokenExpirySkew of clock skew. Tokens without a reported expiration
// never expire.
func (t *TokenSet) Expired() bool {
	if t.expiry.IsZero() {
		return false
	}
	return t.expiry.Round(0).Before(time.Now().Add(DefaultTokenExpirySkew))
}

// Valid returns true when the TokenSet holds an unexpired access token.
func (t *TokenSet) Valid() bool {
	if t == nil {
		return false
	}
	if t.accessToken == "" {
		return false
	}
	return !t.Expired()
}

// StaticTokenSource returns a TokenSource which always returns the set's
// access token, suitable for UserInfo requests. It returns nil when the set
// has no access token.
func (t *TokenSet) StaticTokenSource() oauth2.TokenSource {
	if t.accessToken == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(t.accessToken),
	})
}
