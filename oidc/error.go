package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrIDGeneratorFailed          = errors.New("id generation failed")
	ErrMissingStateCheck          = errors.New("no authorization request state to check the response against")
	ErrResponseStateInvalid       = errors.New("authorization response state and authorization request state are not equal")
	ErrMissingCode                = errors.New("authorization code is missing")
	ErrMissingIDToken             = errors.New("id_token is missing")
	ErrInvalidNonce               = errors.New("invalid nonce")
	ErrInvalidAudience            = errors.New("invalid audience")
	ErrMissingAuthTime            = errors.New("auth_time claim is missing")
	ErrExpiredAuthTime            = errors.New("auth_time is older than the requested max_age")
	ErrUnsupportedChallengeMethod = errors.New("unsupported PKCE challenge method")
	ErrUnsupportedAlg             = errors.New("unsupported signing algorithm")
)
