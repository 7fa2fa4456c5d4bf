// Package auth はサインイン済みユーザーを表す JWT の発行と検証を行います。
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shouni/go-story-kit/pkg/domain"
)

const DefaultIssuer = "go-story-kit"

var (
	ErrInvalidToken = errors.New("トークンが不正です")
	ErrExpiredToken = errors.New("トークンの有効期限が切れています")
)

// Claims はトークンに含まれる情報です。Subject がユーザー ID です。
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager は HS256 でトークンを署名・検証します。
type JWTManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewJWTManager は JWTManager を生成します。
func NewJWTManager(secret, issuer string) (*JWTManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("JWT の署名鍵が設定されていません")
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &JWTManager{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Generate は Principal のトークンを発行します。
func (m *JWTManager) Generate(p domain.Principal, ttl time.Duration) (string, error) {
	if !p.Valid() {
		return "", domain.ErrSignInRequired
	}
	now := m.now()
	claims := Claims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// Parse はトークンを検証して Principal を返します。
func (m *JWTManager) Parse(tokenString string) (domain.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrExpiredToken
		}
		return domain.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Principal{}, ErrInvalidToken
	}
	p := domain.Principal{ID: claims.Subject, Email: claims.Email}
	if !p.Valid() {
		return domain.Principal{}, ErrInvalidToken
	}
	return p, nil
}

// BearerToken は Authorization ヘッダーからトークンを取り出します。
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
