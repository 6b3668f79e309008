package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC key accepted by NewTokenCodec.
const MinSecretLength = 32

var (
	ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	ErrTokenDecode    = errors.New("failed to decode token")
)

// Failure classes logged by Validate.
const (
	failureEmpty       = "empty"
	failureMalformed   = "malformed"
	failureSignature   = "signature"
	failureExpired     = "expired"
	failureUnsupported = "unsupported"
)

// Claims represents JWT custom claims
type Claims struct {
	UserID uint `json:"userId"`
	jwt.RegisteredClaims
}

// TokenClaims is the decoded content of an access token.
type TokenClaims struct {
	Subject   string
	UserID    uint
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS512 session tokens with a single static key.
type TokenCodec struct {
	secret []byte
	issuer string
	logger *slog.Logger
	now    func() time.Time
}

func NewTokenCodec(secret, issuer string, logger *slog.Logger) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenCodec{
		secret: []byte(secret),
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Issue generates a signed token for subject/userID valid for ttl
func (c *TokenCodec) Issue(subject string, userID uint, ttl time.Duration) (string, error) {
	now := c.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, issuer and expiry. It never returns an error;
// the reason a token was rejected is logged instead.
func (c *TokenCodec) Validate(tokenString string) bool {
	if tokenString == "" {
		c.logger.Warn("jwt rejected", "reason", failureEmpty)
		return false
	}

	_, err := jwt.ParseWithClaims(tokenString, &Claims{}, c.keyFunc,
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		c.logger.Warn("jwt rejected", "reason", classify(err), "error", err)
		return false
	}
	return true
}

// Decode verifies the signature and structure and returns the claims.
// Expiry is not checked here; call Validate first.
func (c *TokenCodec) Decode(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, c.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrTokenDecode)
	}

	decoded := &TokenClaims{
		Subject: claims.Subject,
		UserID:  claims.UserID,
	}
	if claims.IssuedAt != nil {
		decoded.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		decoded.ExpiresAt = claims.ExpiresAt.Time
	}
	return decoded, nil
}

func (c *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	// Verify signing method
	if token.Method != jwt.SigningMethodHS512 {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return c.secret, nil
}

func classify(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return failureMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return failureSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return failureExpired
	default:
		return failureUnsupported
	}
}
