// Package jwt issues and verifies compact signed access tokens.
//
// Tokens carry sub, role, iat, exp and jti, plus iss/aud when configured.
// HS256 with a secret of at least 32 bytes is the default; Ed25519 is
// available when third parties must verify tokens from a published JWK set.
package jwt
