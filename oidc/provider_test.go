package oidc

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2/jwt"
)

// testProviderPair starts a test IdP and a Provider configured against it.
func testProviderPair(t *testing.T, opt ...Option) (*TestProvider, *Provider) {
	t.Helper()
	require := require.New(t)
	tp := StartTestProvider(t)
	tp.SetClientCreds("test-rp", "fido")
	tp.SetAllowedRedirectURIs([]string{"https://rp.example.com/callback"})

	c, err := NewConfig(
		tp.Addr(),
		"test-rp",
		"fido",
		[]Alg{ES256},
		"https://rp.example.com/callback",
		append([]Option{WithProviderCA(tp.CACert())}, opt...)...,
	)
	require.NoError(err)
	p, err := NewProvider(c)
	require.NoError(err)
	t.Cleanup(p.Done)
	return tp, p
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert := assert.New(t)
		tp, p := testProviderPair(t)
		assert.Equal(tp.Addr(), p.Issuer())
	})
	t.Run("nil-config", func(t *testing.T) {
		require := require.New(t)
		_, err := NewProvider(nil)
		require.ErrorIs(err, ErrNilParameter)
	})
	t.Run("undiscoverable-issuer", func(t *testing.T) {
		require := require.New(t)
		c, err := NewConfig(
			"https://localhost:1",
			"test-rp", "fido", []Alg{ES256},
			"https://rp.example.com/callback",
		)
		require.NoError(err)
		_, err = NewProvider(c)
		require.Error(err)
	})
}

func TestProvider_AuthURL(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, p := testProviderPair(t)
		authURL, err := p.AuthURL(url.Values{
			"state": {"st_1234"},
			"nonce": {"n_5678"},
		})
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		q := u.Query()
		assert.Equal(tp.Addr()+"/auth", u.Scheme+"://"+u.Host+u.Path)
		assert.Equal("test-rp", q.Get("client_id"))
		assert.Equal("https://rp.example.com/callback", q.Get("redirect_uri"))
		assert.Equal("code", q.Get("response_type"))
		assert.Equal("openid", q.Get("scope"))
		assert.Equal("st_1234", q.Get("state"))
	})
	t.Run("prepends-openid-scope", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		authURL, err := p.AuthURL(url.Values{
			"state": {"st_1234"},
			"scope": {"profile email"},
		})
		require.NoError(err)
		u, err := url.Parse(authURL)
		require.NoError(err)
		require.Equal("openid profile email", u.Query().Get("scope"))
	})
	t.Run("missing-state", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		_, err := p.AuthURL(url.Values{})
		require.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("state-equals-nonce", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		_, err := p.AuthURL(url.Values{
			"state": {"same"},
			"nonce": {"same"},
		})
		require.ErrorIs(err, ErrInvalidParameter)
	})
}

func TestProvider_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.SetExpectedAuthNonce("n_5678")

		tokens, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", Nonce: "n_5678"},
		)
		require.NoError(err)
		require.NotNil(tokens)
		assert.NotEmpty(tokens.IDToken())
		assert.NotEmpty(tokens.AccessToken())
	})
	t.Run("missing-state-check", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{},
		)
		require.ErrorIs(err, ErrMissingStateCheck)
	})
	t.Run("state-mismatch", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		_, err := p.Exchange(ctx,
			url.Values{"state": {"forged"}, "code": {"valid-code"}},
			Checks{State: "st_1234"},
		)
		require.ErrorIs(err, ErrResponseStateInvalid)
	})
	t.Run("missing-code", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}},
			Checks{State: "st_1234"},
		)
		require.ErrorIs(err, ErrMissingCode)
	})
	t.Run("nonce-mismatch", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.SetExpectedAuthNonce("other-nonce")

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", Nonce: "n_5678"},
		)
		require.ErrorIs(err, ErrInvalidNonce)
	})
	t.Run("missing-id-token", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.OmitIDTokens()

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234"},
		)
		require.ErrorIs(err, ErrMissingIDToken)
	})
	t.Run("token-endpoint-error", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.SetTokenError("invalid_grant")

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234"},
		)
		require.Error(err)
		require.Contains(err.Error(), "invalid_grant")
	})
	t.Run("pkce-verifier-sent", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		verifier, err := NewCodeVerifier()
		require.NoError(err)
		tp.SetExpectedCodeVerifier(verifier.Verifier())

		_, err = p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", Verifier: verifier.Verifier()},
		)
		require.NoError(err)

		// a wrong verifier is rejected by the token endpoint
		_, err = p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", Verifier: "wrong-verifier-wrong-verifier-wrong-verifier"},
		)
		require.Error(err)
	})
	t.Run("audience-mismatch", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t, WithAudiences("expected-aud"))
		tp.SetExpectedAuthCode("valid-code")
		tp.SetCustomAudience("test-rp")

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234"},
		)
		require.ErrorIs(err, ErrInvalidAudience)
	})
	t.Run("max-age-missing-auth-time", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", MaxAgeSeconds: 60},
		)
		require.ErrorIs(err, ErrMissingAuthTime)
	})
	t.Run("max-age-expired-auth-time", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.SetCustomClaims(map[string]interface{}{
			"auth_time": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", MaxAgeSeconds: 60},
		)
		require.ErrorIs(err, ErrExpiredAuthTime)
	})
	t.Run("max-age-fresh-auth-time", func(t *testing.T) {
		require := require.New(t)
		tp, p := testProviderPair(t)
		tp.SetExpectedAuthCode("valid-code")
		tp.SetCustomClaims(map[string]interface{}{
			"auth_time": time.Now().Unix(),
		})

		_, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "code": {"valid-code"}},
			Checks{State: "st_1234", MaxAgeSeconds: 60},
		)
		require.NoError(err)
	})
	t.Run("implicit-id-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, p := testProviderPair(t)
		_, priv, _ := tp.SigningKeys()
		idToken := TestSignJWT(t, priv, jwt.Claims{
			Subject:   "alice@example.com",
			Issuer:    tp.Addr(),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-5 * time.Second)),
			Expiry:    jwt.NewNumericDate(time.Now().Add(30 * time.Second)),
			Audience:  jwt.Audience{"test-rp"},
		}, map[string]interface{}{"nonce": "n_5678"})

		tokens, err := p.Exchange(ctx,
			url.Values{"state": {"st_1234"}, "id_token": {idToken}},
			Checks{State: "st_1234", Nonce: "n_5678"},
		)
		require.NoError(err)
		assert.Equal(IDToken(idToken), tokens.IDToken())
		assert.Empty(tokens.AccessToken())
	})
}

func TestProvider_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		_, p := testProviderPair(t)
		claims, err := p.UserInfo(ctx, "atok")
		require.NoError(err)
		assert.Equal("alice@example.com", claims["sub"])
		assert.Equal("red", claims["color"])
	})
	t.Run("empty-access-token", func(t *testing.T) {
		require := require.New(t)
		_, p := testProviderPair(t)
		_, err := p.UserInfo(ctx, "")
		require.ErrorIs(err, ErrInvalidParameter)
	})
	t.Run("disabled", func(t *testing.T) {
		require := require.New(t)
		tp := StartTestProvider(t)
		tp.SetClientCreds("test-rp", "fido")
		tp.DisableUserInfo()
		c, err := NewConfig(
			tp.Addr(), "test-rp", "fido", []Alg{ES256},
			"https://rp.example.com/callback",
			WithProviderCA(tp.CACert()),
		)
		require.NoError(err)
		p, err := NewProvider(c)
		require.NoError(err)
		t.Cleanup(p.Done)
		_, err = p.UserInfo(ctx, "atok")
		require.Error(err)
	})
}
