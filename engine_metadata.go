package authsvc

import (
	"strings"

	jose "github.com/go-jose/go-jose/v4"
)

// Well-known paths served next to the auth routes.
const (
	JWKSPath          = "/.well-known/jwks.json"
	OpenIDConfigPath  = "/.well-known/openid-configuration"
	TokenEndpointPath = "/auth/V1/login"
)

// VerificationMetadata describes how third parties verify access tokens.
type VerificationMetadata struct {
	Issuer                           string   `json:"issuer"`
	JWKSURI                          string   `json:"jwks_uri"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
}

// KeySet returns the public verification keys. HS256 secrets are never
// published, so the set is empty unless Ed25519 signing is configured.
func (e *Engine) KeySet() jose.JSONWebKeySet {
	if e == nil || e.signer == nil {
		return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{}}
	}
	return e.signer.KeySet()
}

// VerificationMetadata returns the discovery document. baseURL is used when
// no issuer is configured.
func (e *Engine) VerificationMetadata(baseURL string) VerificationMetadata {
	issuer := e.config.JWT.Issuer
	if strings.TrimSpace(issuer) == "" {
		issuer = baseURL
	}
	issuer = strings.TrimRight(issuer, "/")

	return VerificationMetadata{
		Issuer:                           issuer,
		JWKSURI:                          issuer + JWKSPath,
		TokenEndpoint:                    issuer + TokenEndpointPath,
		AuthorizationEndpoint:            issuer + TokenEndpointPath,
		IDTokenSigningAlgValuesSupported: []string{e.signer.Algorithm()},
		ResponseTypesSupported:           []string{"token"},
		SubjectTypesSupported:            []string{"public"},
	}
}
