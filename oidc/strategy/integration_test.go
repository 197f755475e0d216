package strategy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidcware/relay/oidc"
)

// TestStrategy_EndToEnd runs a full authorization code flow against a live
// test IdP with a real Provider as the strategy's client.
func TestStrategy_EndToEnd(t *testing.T) {
	assert, require := assert.New(t), require.New(t)
	tp := oidc.StartTestProvider(t)
	tp.SetClientCreds("test-rp", "fido")
	tp.SetExpectedAuthCode("valid-code")
	redirectURL := "https://rp.example.com/callback"
	tp.SetAllowedRedirectURIs([]string{redirectURL})

	pc, err := oidc.NewConfig(
		tp.Addr(),
		"test-rp",
		"fido",
		[]oidc.Alg{oidc.ES256},
		redirectURL,
		oidc.WithProviderCA(tp.CACert()),
	)
	require.NoError(err)
	provider, err := oidc.NewProvider(pc)
	require.NoError(err)
	t.Cleanup(provider.Done)

	var claims map[string]interface{}
	s, err := New(&Config{
		Client:     provider,
		VerifyMode: VerifyTokensProfile,
		Params: url.Values{
			"redirect_uri": {redirectURL},
			"scope":        {"openid profile"},
		},
		Verify: func(ctx context.Context, vc *VerifyContext) (*VerifyResult, error) {
			var idClaims map[string]interface{}
			if err := vc.Tokens.IDToken().Claims(&idClaims); err != nil {
				return nil, err
			}
			claims = vc.Profile
			return &VerifyResult{User: idClaims["sub"]}, nil
		},
	})
	require.NoError(err)

	ctx := context.Background()
	sess := NewMemorySession()
	outcome := s.Authenticate(ctx, httptest.NewRequest(http.MethodGet, "/login", nil), sess)
	redirect, ok := outcome.(Redirect)
	require.True(ok, "expected Redirect, got %T: %v", outcome, outcome)
	flow := testFlowState(t, s, sess)

	u, err := url.Parse(redirect.URL)
	require.NoError(err)
	assert.Equal(tp.Addr(), u.Scheme+"://"+u.Host)
	assert.Equal(flow.State, u.Query().Get("state"))
	assert.Equal("test-rp", u.Query().Get("client_id"))

	params := url.Values{"code": {"valid-code"}, "state": {flow.State}}
	req := httptest.NewRequest(http.MethodGet, "/callback?"+params.Encode(), nil)
	outcome = s.Authenticate(ctx, req, sess)
	success, ok := outcome.(Success)
	require.True(ok, "expected Success, got %T: %v", outcome, outcome)
	assert.Equal("alice@example.com", success.User)
	require.NotNil(claims)
	assert.Equal("alice@example.com", claims["sub"])
	assert.Equal(0, sess.Len())
}
