// Package jwt signs and verifies the JWS half of saraAuth bearer tokens.
//
// Tokens are asymmetric (ES256 by default, EdDSA optional) so that
// verify-only deployments never hold the private key. Parse pins the
// algorithm, issuer and audience and requires exp and iat; the manager
// clock is injectable for deterministic time-claim tests.
package jwt
