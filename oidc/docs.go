// oidc is a package for writing OIDC relying parties: clients that send users
// to an OpenID Connect provider for authentication and then consume the
// authorization response.
//
// Provider: the protocol client for a provider using the typical 3-legged
// authorization code flow. It handles issuer discovery, building
// authorization URLs, exchanging authorization codes for a TokenSet (with
// id_token verification), and fetching UserInfo claims.
//
// Checks: the anti-forgery and replay-protection material (state, nonce, PKCE
// verifier, max_age) captured when an authorization flow starts and replayed
// when its callback is exchanged.
//
// TokenSet: the bundle of credentials (id_token, access_token and optionally
// refresh_token) returned from a successful exchange. Tokens use redacted
// string types, so they are not accidentally leaked via logging or JSON
// encoding.
//
// CodeVerifier: PKCE proof-key material binding an authorization code to a
// locally held secret.
//
// The package also includes a TestProvider that implements enough of a
// provider to test a relying party end to end, without standing up a real
// IdP.
//
// The oidc/strategy sub-package builds the session-bound
// authentication-request/callback state machine on top of this package.
package oidc
