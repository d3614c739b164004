package auth

import (
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/xenking/kart-commerce/internal/domain/customer"
)

// ErrUnauthorized is returned for missing, malformed, expired or forged tokens
// and for failed logins.
var ErrUnauthorized = errors.New("unauthorized")

// Claims is the identity carried by an access token.
type Claims struct {
	CustomerID int64
	Username   string
	Roles      []customer.Role
}

// HasRole reports whether the token grants r.
func (c *Claims) HasRole(r customer.Role) bool {
	return slices.Contains(c.Roles, r)
}

type tokenClaims struct {
	Username string          `json:"username"`
	Roles    []customer.Role `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HMAC-SHA256 signed access tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokens creates a token codec. The secret must be non-empty.
func NewTokens(secret []byte, ttl time.Duration) (*Tokens, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is empty")
	}
	return &Tokens{secret: secret, ttl: ttl, issuer: "kart-commerce", now: time.Now}, nil
}

// Issue signs a token for c.
func (t *Tokens) Issue(c *customer.Customer) (string, error) {
	now := t.now()
	claims := tokenClaims{
		Username: c.Username,
		Roles:    c.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(c.ID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the identity.
func (t *Tokens) Verify(token string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrUnauthorized
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return &Claims{CustomerID: id, Username: claims.Username, Roles: claims.Roles}, nil
}
