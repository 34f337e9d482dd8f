package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the validity window of a minted token, counted from mint time.
// It is independent of the cookie lifetime.
const TokenTTL = time.Hour

// Codec signs and verifies opaque session tokens with a process-wide secret.
// If the secret is generated per boot, all sessions are invalidated on
// restart; that is an accepted tradeoff.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret, now: time.Now}
}

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Mint serializes the identity into a signed, time-limited token.
func (c *Codec) Mint(id Identity) (string, error) {
	now := c.now()
	claims := &sessionClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks signature and expiry. It returns nil on any signature
// mismatch, malformed payload, or expiry; the caller must clear the stored
// session on nil so a dead token is not re-verified on every request.
func (c *Codec) Verify(token string) *Identity {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil || !parsed.Valid {
		return nil
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || claims.Subject == "" {
		return nil
	}
	return &Identity{ID: claims.Subject, Email: claims.Email, Name: claims.Name}
}
