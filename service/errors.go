package service

import "errors"

// Auth failures are surfaced to clients as coarse codes only; remote
// response bodies never leak past this package.
var (
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrPkceMissing     = errors.New("pkce verifier missing")
	ErrInvalidGrant    = errors.New("authorization code rejected")
	ErrExchangeFailed  = errors.New("token exchange failed")
	ErrTokenExpired    = errors.New("session token expired")
	ErrBadSignature    = errors.New("session token signature invalid")
	ErrIssuerMismatch  = errors.New("session token issuer or algorithm mismatch")
	ErrUnauthenticated = errors.New("not authenticated")
)

var (
	ErrCorruptEntry      = errors.New("corrupt cache entry")
	ErrRemoteFetchFailed = errors.New("remote fetch failed")
	ErrNodeNotFound      = errors.New("node not found")
)
