package oidc

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/oidcware/relay/oidc/internal/strutils"
)

// Checks is the anti-forgery and replay-protection material captured when an
// authorization flow starts and replayed when its callback response is
// exchanged. All fields other than State are optional.
type Checks struct {
	// State is the opaque value bound to the flow. Exchange requires the
	// authorization response "state" parameter to match it exactly.
	State string

	// Nonce, when not empty, must match the id_token's nonce claim.
	Nonce string

	// Verifier is the PKCE code verifier sent to the token endpoint as
	// code_verifier.
	Verifier string

	// MaxAgeSeconds, when not zero, requires the id_token to carry an
	// auth_time claim no older than the given number of seconds.
	MaxAgeSeconds uint

	// ResponseType is the response type the flow was started with.
	ResponseType string

	// ClientAssertionJWT, when not empty, is sent to the token endpoint as a
	// client_assertion (private_key_jwt client authentication).
	ClientAssertionJWT string
}

// clientAssertionJWTType is the client_assertion_type for JWT bearer
// assertions. See RFC 7523 section 2.2.
const clientAssertionJWTType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// Provider provides integration with an OIDC provider using the typical
// 3-legged authorization code flow.
type Provider struct {
	config   *Config
	provider *oidc.Provider

	mu sync.Mutex

	// client is the http client created from the config, shared by all of
	// the provider's outbound requests.
	client *http.Client

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing JWKs key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider. Initializing the provider
// includes making an http request to the provider's issuer for discovery.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: relying party config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: relying party config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with its background ctx/cancel allows
	// p.Done() to release resources when returning errors from this function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	provider, err := oidc.NewProvider(HTTPClientContext(p.backgroundCtx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Issuer returns the issuer identity the provider was configured with, which
// is stable for the provider's lifetime.
func (p *Provider) Issuer() string {
	return p.config.Issuer
}

// AuthURL builds a URL the caller can use to kick off an authorization flow
// with the IdP. It is pure URL construction against the endpoint cached at
// discovery: it never waits on network I/O.
//
// The params are authorization request parameters (state, nonce, scope,
// redirect_uri, response_type, extensions...). client_id always comes from
// the provider's config; redirect_uri, response_type and scope are filled
// with config defaults when absent. The "openid" scope is required and is
// prepended if missing.
func (p *Provider) AuthURL(params url.Values) (string, error) {
	const op = "Provider.AuthURL"
	if params.Get("state") == "" {
		return "", fmt.Errorf("%s: state is empty: %w", op, ErrInvalidParameter)
	}
	if params.Get("state") == params.Get("nonce") {
		return "", fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("client_id", p.config.ClientID)
	if q.Get("redirect_uri") == "" {
		q.Set("redirect_uri", p.config.RedirectURL)
	}
	if q.Get("response_type") == "" {
		q.Set("response_type", "code")
	}
	switch scope := q.Get("scope"); {
	case scope == "":
		q.Set("scope", strings.Join(append([]string{oidc.ScopeOpenID}, p.config.Scopes...), " "))
	case !strutils.StrListContains(strings.Fields(scope), oidc.ScopeOpenID):
		q.Set("scope", oidc.ScopeOpenID+" "+scope)
	}

	u, err := url.Parse(p.provider.Endpoint().AuthURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse authorization endpoint: %w", op, err)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Exchange validates the authorization response params against the checks
// stored when the flow started and then requests a TokenSet from the token
// endpoint using the response's authorization code. The id_token returned by
// the exchange is verified (signature, nonce, audience and auth_time) before
// the TokenSet is returned.
func (p *Provider) Exchange(ctx context.Context, params url.Values, checks Checks) (*TokenSet, error) {
	const op = "Provider.Exchange"
	if checks.State == "" {
		return nil, fmt.Errorf("%s: unable to verify the authorization response: %w", op, ErrMissingStateCheck)
	}
	if params.Get("state") != checks.State {
		return nil, fmt.Errorf("%s: response state %q: %w", op, params.Get("state"), ErrResponseStateInvalid)
	}

	code := params.Get("code")
	if code == "" {
		// tokens returned directly in the authorization response (implicit
		// and some hybrid flows) skip the token endpoint entirely
		if params.Get("id_token") != "" {
			return p.exchangeImplicit(ctx, params, checks)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCode)
	}

	oauth2Config := oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
	}
	var exchangeOpts []oauth2.AuthCodeOption
	if checks.Verifier != "" {
		exchangeOpts = append(exchangeOpts, oauth2.SetAuthURLParam("code_verifier", checks.Verifier))
	}
	if checks.ClientAssertionJWT != "" {
		exchangeOpts = append(exchangeOpts,
			oauth2.SetAuthURLParam("client_assertion_type", clientAssertionJWTType),
			oauth2.SetAuthURLParam("client_assertion", checks.ClientAssertionJWT),
		)
	}

	oidcCtx := HTTPClientContext(ctx, p.client)
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, code, exchangeOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w", op, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("%s: id_token is missing from auth code exchange: %w", op, ErrMissingIDToken)
	}
	t, err := NewTokenSet(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token set: %w", op, err)
	}
	if err := p.VerifyIDToken(ctx, t.IDToken(), checks); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// exchangeImplicit handles an authorization response carrying the tokens
// directly, so there's no code to exchange. The id_token still goes through
// the same verification as the code flow.
func (p *Provider) exchangeImplicit(ctx context.Context, params url.Values, checks Checks) (*TokenSet, error) {
	const op = "Provider.exchangeImplicit"
	var oauth2Token *oauth2.Token
	if accessToken := params.Get("access_token"); accessToken != "" {
		oauth2Token = &oauth2.Token{
			AccessToken: accessToken,
		}
	}
	t, err := NewTokenSet(IDToken(params.Get("id_token")), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to create token set: %w", op, err)
	}
	if err := p.VerifyIDToken(ctx, t.IDToken(), checks); err != nil {
		return nil, fmt.Errorf("%s: id_token failed verification: %w", op, err)
	}
	return t, nil
}

// VerifyIDToken verifies the inbound id_token: it checks it's been signed by
// the provider, validates the nonce when the checks carry one, and performs
// audience and auth_time checks depending on the provider's config and
// checks.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, checks Checks) error {
	const op = "Provider.VerifyIDToken"
	if t == "" {
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.config.SupportedSigningAlgs))
	for _, a := range p.config.SupportedSigningAlgs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		SupportedSigningAlgs: algs,
		ClientID:             p.config.ClientID,
	})

	oidcIDToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return fmt.Errorf("%s: invalid id_token signature: %w", op, err)
	}

	if checks.Nonce != "" && oidcIDToken.Nonce != checks.Nonce {
		return fmt.Errorf("%s: invalid id_token nonce: %w", op, ErrInvalidNonce)
	}

	if len(p.config.Audiences) > 0 {
		found := false
		for _, v := range p.config.Audiences {
			if strutils.StrListContains(oidcIDToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: invalid id_token audiences: %w", op, ErrInvalidAudience)
		}
	}

	if checks.MaxAgeSeconds > 0 {
		var claims struct {
			AuthTime int64 `json:"auth_time"`
		}
		if err := oidcIDToken.Claims(&claims); err != nil {
			return fmt.Errorf("%s: unable to get auth_time claim: %w", op, err)
		}
		if claims.AuthTime == 0 {
			return fmt.Errorf("%s: max_age was requested: %w", op, ErrMissingAuthTime)
		}
		authAfter := time.Now().Add(-time.Duration(checks.MaxAgeSeconds) * time.Second)
		if time.Unix(claims.AuthTime, 0).Before(authAfter) {
			return fmt.Errorf("%s: authenticated at %d: %w", op, claims.AuthTime, ErrExpiredAuthTime)
		}
	}
	return nil
}

// UserInfo gets the UserInfo claims from the provider using the given access
// token.
func (p *Provider) UserInfo(ctx context.Context, accessToken AccessToken) (map[string]interface{}, error) {
	const op = "Provider.UserInfo"
	if accessToken == "" {
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	oidcCtx := HTTPClientContext(ctx, p.client)

	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: string(accessToken),
	})
	userinfo, err := p.provider.UserInfo(oidcCtx, tokenSource)
	if err != nil {
		return nil, fmt.Errorf("%s: provider UserInfo request failed: %w", op, err)
	}
	claims := map[string]interface{}{}
	if err := userinfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: failed to get UserInfo claims: %w", op, err)
	}
	return claims, nil
}
