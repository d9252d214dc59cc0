// Package security validates bearer access tokens issued by the external
// identity provider. Token issuance lives with the provider; only the public
// key, issuer, and audience are configured here.
package security

import (
	"crypto"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token is malformed or invalid.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims holds JWT claims for the identity provider's access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	AccountID string `json:"account_id"`
}

// TokenVerifier validates RS256/ES256 access tokens against the identity
// provider's public key.
type TokenVerifier struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// NewTokenVerifier returns a TokenVerifier for tokens signed by the given
// public key with the expected issuer and audience claims.
func NewTokenVerifier(publicKey crypto.PublicKey, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{
		publicKey: publicKey,
		issuer:    issuer,
		audience:  audience,
	}
}

// ValidateAccess parses and validates the access token (signature, exp, iss, aud).
// Returns the subject user id and the account id claim, or ErrInvalidToken.
func (v *TokenVerifier) ValidateAccess(tokenString string) (userID, accountID string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return v.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return v.publicKey, nil
		}
		return nil, ErrInvalidToken
	}, jwt.WithTimeFunc(time.Now))
	if err != nil {
		return "", "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Issuer != v.issuer {
		return "", "", ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == v.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.AccountID, nil
}
