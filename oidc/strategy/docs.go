// strategy implements the authentication-request/callback state machine for
// an OIDC relying party: it classifies each inbound request as either the
// start of an authorization flow or its callback, keeps the per-flow
// anti-forgery and replay-protection material (state, nonce, PKCE verifier,
// max_age) in the caller's session between the two requests, and drives every
// callback to exactly one terminal outcome.
//
// The callback path is a small state machine:
//
//	Received -> error-param check -> {Fail | Error | exchange}
//	exchange -> {Error | optional profile fetch -> verify -> {Success | Fail | Error}}
//
// Outcomes are values (Success, Fail, Error, Redirect) returned from
// Strategy.Authenticate; the Handler adapter maps them onto http responses
// via caller-supplied response funcs.
//
// The protocol work itself (building authorization URLs, exchanging codes,
// fetching userinfo) is delegated to a Client, which *oidc.Provider
// satisfies.
package strategy
