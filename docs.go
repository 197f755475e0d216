// relay (relying-party authentication library) provides packages for adding
// OpenID Connect relying-party support to Go applications: a protocol client
// for the 3-legged authorization code flow and an authentication strategy
// which manages the per-flow session state between the authorization redirect
// and the callback.
//
// See README.md
package relay
