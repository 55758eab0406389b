package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenTTL  = 7 * 24 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour

	typeRefresh = "refresh"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrMalformedToken = errors.New("malformed token")
	ErrExpiredToken   = errors.New("expired token")
)

// Claims 令牌中携带的用户信息，refresh 令牌的 Type 为 "refresh"
type Claims struct {
	UserID int64  `json:"userId"`
	Type   string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair 登录和刷新时返回给客户端
type TokenPair struct {
	AuthenticationToken string    `json:"authentication_token"`
	RefreshToken        string    `json:"refresh_token"`
	Expiry              time.Time `json:"expiry"`
}

// Manager 使用 HS256 对称密钥签发和校验令牌
type Manager struct {
	secret []byte
	now    func() time.Time
}

func NewManager(secret string) (*Manager, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}

	return &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// Issue 为用户签发一对令牌
func (m *Manager) Issue(userID int64) (*TokenPair, error) {
	now := m.now()

	access, err := m.sign(userID, "", now, AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := m.sign(userID, typeRefresh, now, RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AuthenticationToken: access,
		RefreshToken:        refresh,
		Expiry:              now.Add(AccessTokenTTL).UTC(),
	}, nil
}

func (m *Manager) sign(userID int64, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// VerifyAccess 校验访问令牌，refresh 令牌在此处被拒绝
func (m *Manager) VerifyAccess(token string) (int64, error) {
	claims, err := m.parse(token)
	if err != nil {
		return 0, err
	}
	if claims.Type == typeRefresh {
		return 0, ErrMalformedToken
	}
	return claims.UserID, nil
}

// VerifyRefresh 只接受 refresh 令牌
func (m *Manager) VerifyRefresh(token string) (int64, error) {
	claims, err := m.parse(token)
	if err != nil {
		return 0, err
	}
	if claims.Type != typeRefresh {
		return 0, ErrMalformedToken
	}
	return claims.UserID, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID < 1 {
		return nil, ErrMalformedToken
	}

	return claims, nil
}
