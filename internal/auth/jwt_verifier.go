package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier extends Verifier to also accept a signed JWT as the bearer
// token: an operator tool can mint a JWT whose "sub" claim is the shared
// secret, so a human operator can be handed a JWT instead of the raw
// secret itself. Grounded on the teacher's auth_service.go issuance/
// validation pattern.
type JWTVerifier struct {
	*Verifier
	signingKey []byte
}

// NewJWTVerifier wraps a Verifier with JWT-shaped bearer token support.
// An empty signingKey disables JWT parsing; Verify then behaves exactly
// like the wrapped Verifier.
func NewJWTVerifier(base *Verifier, signingKey string) *JWTVerifier {
	return &JWTVerifier{Verifier: base, signingKey: []byte(signingKey)}
}

// Verify accepts either a bare shared secret (delegated to the wrapped
// Verifier) or a JWT signed with signingKey whose "sub" claim is the
// shared secret.
func (v *JWTVerifier) Verify(raw string) bool {
	if len(v.signingKey) == 0 || strings.Count(raw, ".") != 2 {
		return v.Verifier.Verify(raw)
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return false
	}
	return v.Verifier.Verify(sub)
}
