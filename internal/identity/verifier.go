package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの署名・有効期限・発行者の検証に失敗した場合に返す。
var ErrInvalidToken = errors.New("invalid identity token")

// VerifierConfig はトークン検証の設定。
type VerifierConfig struct {
	Algorithm string // "HS256" または "RS256"
	Key       string // HS256は共有シークレット、RS256はPEM形式の公開鍵
	Issuer    string // 空の場合は発行者を検証しない
}

// sessionClaims はIdPのセッショントークンのクレーム。
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier はIdPのセッショントークンを検証する。
type Verifier struct {
	parser *jwt.Parser
	key    any
}

// NewVerifier はVerifierを生成する。鍵の形式が不正な場合はエラーを返す。
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	var key any
	switch strings.ToUpper(cfg.Algorithm) {
	case "HS256":
		if cfg.Key == "" {
			return nil, fmt.Errorf("identity key is empty")
		}
		key = []byte(cfg.Key)
	case "RS256":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.Key))
		if err != nil {
			return nil, fmt.Errorf("failed to parse identity public key: %w", err)
		}
		key = pub
	default:
		return nil, fmt.Errorf("unsupported identity algorithm: %s", cfg.Algorithm)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{strings.ToUpper(cfg.Algorithm)}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Verifier{
		parser: jwt.NewParser(opts...),
		key:    key,
	}, nil
}

// Verify はトークンを検証し、Identityを返す。
func (v *Verifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &sessionClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}
