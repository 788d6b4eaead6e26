package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

var ErrInvalidToken = errors.New("invalid token")

type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

func (c *RefreshClaims) UserID() (uint, error) {
	return parseSubject(c.Subject)
}

type Pair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	JTI          string
}

type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	Now func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) Issue(userID uint, role string) (*Pair, error) {
	now := i.now()
	sub := strconv.FormatUint(uint64(userID), 10)

	accessExp := now.Add(i.AccessTTL)
	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	accessToken, err := access.SignedString(i.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	jti := NewJTI()
	refreshExp := now.Add(i.RefreshTTL)
	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	refreshToken, err := refresh.SignedString(i.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		JTI:          jti,
	}, nil
}

func AccessClaimsFromToken(tokenStr string, secret []byte) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parse(tokenStr, &claims, secret); err != nil {
		return nil, err
	}
	return &claims, nil
}

func RefreshClaimsFromToken(tokenStr string, secret []byte) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parse(tokenStr, &claims, secret); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("refresh token without jti: %w", ErrInvalidToken)
	}
	return &claims, nil
}

func parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return ErrInvalidToken
	}
	return nil
}

func parseSubject(sub string) (uint, error) {
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("bad subject %q: %w", sub, ErrInvalidToken)
	}
	return uint(id), nil
}

func NewJTI() string { return uuid.NewString() }
