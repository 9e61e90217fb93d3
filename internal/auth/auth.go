// Package auth hashes passwords and issues the signed session tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongPassword = errors.New("incorrect password")
)

const passwordCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword returns ErrWrongPassword when password does not match hash.
func CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	if err != nil {
		return fmt.Errorf("failed to compare password: %w", err)
	}
	return nil
}

// Claims are carried by every session token. The JWT ID is the server-side session id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret cannot be empty")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, issuer: "brokerdesk", now: time.Now}, nil
}

// Issue signs a token for user and returns the session record to persist alongside it.
func (i *TokenIssuer) Issue(user *models.User) (string, *models.Session, error) {
	now := i.now().UTC().Truncate(time.Second)
	sess := &models.Session{
		Id:        uuid.New().String(),
		UserId:    user.Id,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	claims := &Claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.Id,
			Issuer:    i.issuer,
			Subject:   user.Id,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			NotBefore: jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, sess, nil
}

// Parse verifies signature and expiry. Revocation is checked by the caller against the store.
func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
