package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/oidcware/relay/oidc/internal/base62"
)

// ChallengeMethod represents a PKCE code challenge method (see RFC 7636).
type ChallengeMethod string

const (
	// S256 is the only method currently supported: the challenge is the
	// base64url encoding of the verifier's SHA-256 hash.
	S256 ChallengeMethod = "S256"
)

// verifierLen is the number of characters in a code verifier. RFC 7636
// requires 43 to 128 characters from the unreserved character set; 43 base62
// characters are ~256 bits of entropy.
const verifierLen = 43

// CodeVerifier represents the PKCE proof key for one authorization code
// flow: the locally held verifier and the challenge derived from it which is
// sent along with the authorization request.
type CodeVerifier struct {
	verifier  string
	method    ChallengeMethod
	challenge string
}

// NewCodeVerifier creates a new CodeVerifier with a cryptographically random
// verifier and an S256 challenge.
func NewCodeVerifier() (CodeVerifier, error) {
	const op = "oidc.NewCodeVerifier"
	data, err := base62.Random(verifierLen)
	if err != nil {
		return CodeVerifier{}, fmt.Errorf("%s: unable to generate verifier data: %w", op, ErrIDGeneratorFailed)
	}
	v := CodeVerifier{
		verifier: data,
		method:   S256,
	}
	v.challenge, err = CreateCodeChallenge(v.method, v.verifier)
	if err != nil {
		return CodeVerifier{}, fmt.Errorf("%s: unable to create code challenge: %w", op, err)
	}
	return v, nil
}

// Verifier returns the code verifier to be replayed at the token endpoint.
func (v CodeVerifier) Verifier() string { return v.verifier }

// Method returns the challenge method.
func (v CodeVerifier) Method() ChallengeMethod { return v.method }

// Challenge returns the derived code challenge.
func (v CodeVerifier) Challenge() string { return v.challenge }

// IsZero reports whether the verifier is the zero value (no PKCE material).
func (v CodeVerifier) IsZero() bool { return v.verifier == "" }

// CreateCodeChallenge creates a code challenge from a verifier string using
// the given method. ErrUnsupportedChallengeMethod is returned for any method
// other than S256; the "plain" method is intentionally not supported.
func CreateCodeChallenge(method ChallengeMethod, verifier string) (string, error) {
	const op = "oidc.CreateCodeChallenge"
	switch method {
	case S256:
		h := sha256.New()
		_, _ = h.Write([]byte(verifier))
		return base64.RawURLEncoding.EncodeToString(h.Sum(nil)), nil
	default:
		return "", fmt.Errorf("%s: %s: %w", op, method, ErrUnsupportedChallengeMethod)
	}
}
