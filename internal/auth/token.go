package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken     = errors.New("token is invalid")
	ErrTokenType        = errors.New("token type mismatch")
	ErrInvalidPrincipal = errors.New("token principal is invalid")
)

var signingMethod = jwt.SigningMethodHS256

// Claims несут вид аккаунта и роль, чтобы middleware не ходил в базу.
// jti у refresh-токена совпадает с id записи в refresh_tokens.
type Claims struct {
	TokenType TokenType `json:"typ"`
	Kind      Kind      `json:"kind"`
	Role      string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() (Principal, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil || !c.Kind.Valid() {
		return Principal{}, ErrInvalidPrincipal
	}
	return Principal{Kind: c.Kind, ID: id, Role: c.Role}, nil
}

// TokenID возвращает jti как UUID.
func (c *Claims) TokenID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenManager подписывает и проверяет HS256-токены одного издателя.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret, issuer string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// NewTokenPair выпускает access-токен со случайным jti и refresh-токен с jti = refreshID.
func (m *TokenManager) NewTokenPair(principal Principal, refreshID uuid.UUID) (TokenPair, error) {
	if !principal.Kind.Valid() || principal.ID == uuid.Nil {
		return TokenPair{}, ErrInvalidPrincipal
	}

	issuedAt := m.now()
	var pair TokenPair
	var err error

	pair.AccessExpiresAt = issuedAt.Add(m.accessTTL)
	pair.AccessToken, err = m.sign(principal, TokenTypeAccess, uuid.New(), issuedAt, pair.AccessExpiresAt)
	if err != nil {
		return TokenPair{}, err
	}

	pair.RefreshExpiresAt = issuedAt.Add(m.refreshTTL)
	pair.RefreshToken, err = m.sign(principal, TokenTypeRefresh, refreshID, issuedAt, pair.RefreshExpiresAt)
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (m *TokenManager) ParseAccessToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeAccess)
}

func (m *TokenManager) ParseRefreshToken(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeRefresh)
}

func (m *TokenManager) sign(principal Principal, typ TokenType, id uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		TokenType: typ,
		Kind:      principal.Kind,
		Role:      principal.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    m.issuer,
			Subject:   principal.ID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// parse проверяет подпись, издателя, срок и тип токена. Ошибки jwt
// (например, jwt.ErrTokenExpired) возвращаются без обертки.
func (m *TokenManager) parse(raw string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case err != nil:
		return nil, err
	case !token.Valid:
		return nil, ErrInvalidToken
	case claims.TokenType != want:
		return nil, ErrTokenType
	}
	return claims, nil
}
