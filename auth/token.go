// Package auth is the boundary to the external identity provider.
// The relay core consumes only (participant_id, class) from the token
// claims; sessions and credentials are managed elsewhere.
package auth

import (
	"fmt"
	"time"

	"deskrelay/domain"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Class  string `json:"class"`
	jwt.RegisteredClaims
}

// Verifier validates tokens signed by the identity provider with a
// shared HMAC secret.
type Verifier struct {
	key    []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{key: []byte(secret), issuer: issuer}
}

// Generate creates a signed JWT for a participant. The relay only uses
// this for tests and local tooling; production tokens come from the
// identity provider.
func (v *Verifier) Generate(p domain.Participant, duration time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID: p.ID,
		Class:  string(p.Class),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    v.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}

// Validate parses and checks the signature and expiration of a token,
// then maps its claims to a Participant.
func (v *Verifier) Validate(tokenString string) (domain.Participant, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return domain.Participant{}, err
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return domain.Participant{}, jwt.ErrSignatureInvalid
	}
	p := domain.Participant{ID: claims.UserID, Class: domain.Class(claims.Class)}
	if p.ID == "" || !p.Class.Valid() {
		return domain.Participant{}, fmt.Errorf("token claims do not identify a participant")
	}
	return p, nil
}
