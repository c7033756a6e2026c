// Package idtoken provides an auth.IdentityProvider backed by the signed ID
// token returned by a hosted phone authentication service.
//
// Tokens are verified with a jwt.Keyfunc, either supplied directly (shared
// secret, static keys) or loaded from a JWKS endpoint with NewJWKSProvider.
package idtoken
