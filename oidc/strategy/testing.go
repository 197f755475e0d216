package strategy

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/oidcware/relay/oidc"
)

// TestClient is a Client double for strategy tests. It validates state the
// way a real provider client does and records what it was called with.
type TestClient struct {
	mu sync.Mutex

	// IssuerURL is the issuer identity reported by Issuer. Defaults to
	// "https://issuer.test.example" when empty.
	IssuerURL string

	// Tokens is returned from a successful Exchange.
	Tokens *oidc.TokenSet

	// ExchangeErr, when set, is returned from Exchange after the state
	// checks pass.
	ExchangeErr error

	// Profile is returned from UserInfo.
	Profile map[string]interface{}

	// UserInfoErr, when set, is returned from UserInfo.
	UserInfoErr error

	// LastAuthParams records the params of the most recent AuthURL call.
	LastAuthParams url.Values

	// LastChecks records the checks of the most recent Exchange call.
	LastChecks oidc.Checks

	// UserInfoCalls counts UserInfo invocations.
	UserInfoCalls int
}

func (c *TestClient) Issuer() string {
	if c.IssuerURL == "" {
		return "https://issuer.test.example"
	}
	return c.IssuerURL
}

func (c *TestClient) AuthURL(params url.Values) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastAuthParams = params
	return c.Issuer() + "/authorize?" + params.Encode(), nil
}

func (c *TestClient) Exchange(ctx context.Context, params url.Values, checks oidc.Checks) (*oidc.TokenSet, error) {
	const op = "TestClient.Exchange"
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastChecks = checks
	if checks.State == "" {
		return nil, fmt.Errorf("%s: %w", op, oidc.ErrMissingStateCheck)
	}
	if params.Get("state") != checks.State {
		return nil, fmt.Errorf("%s: %w", op, oidc.ErrResponseStateInvalid)
	}
	if c.ExchangeErr != nil {
		return nil, c.ExchangeErr
	}
	return c.Tokens, nil
}

func (c *TestClient) UserInfo(ctx context.Context, accessToken oidc.AccessToken) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UserInfoCalls++
	if c.UserInfoErr != nil {
		return nil, c.UserInfoErr
	}
	return c.Profile, nil
}
