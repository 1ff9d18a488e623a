package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TTL is the session lifetime. It is enforced lazily at decode time,
// there is no background expiry.
const TTL = 24 * time.Hour

type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Result is what Decode hands back. Decode never fails with an error:
// anything wrong with the token degrades to Valid=false so callers can
// treat every failure uniformly as "not authenticated".
type Result struct {
	Valid   bool
	Expired bool
	Claims  *Claims
}

// Codec signs and verifies session tokens with a server-held HS256 secret.
// The signature makes the token tamper-evident; claims are not encrypted.
type Codec struct {
	secret []byte
}

func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

func (c *Codec) Encode(userID, username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			// The jti makes every issued token distinct. Timestamps
			// have second granularity, so without it a rotation inside
			// the same second reissues the identical token and the
			// rotating store would drop its own fresh session key.
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.secret)
}

func (c *Codec) Decode(tokenStr string) Result {
	var claims Claims
	t, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Result{Valid: false, Expired: true}
		}
		return Result{Valid: false}
	}
	if !t.Valid {
		return Result{Valid: false}
	}
	return Result{Valid: true, Claims: &claims}
}
