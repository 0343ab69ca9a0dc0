// Package accesscode はアクセスコードの発行と引き換えを提供する。
//
// コードは平文で保存せず、検索用のプレフィックスとbcryptハッシュのみを保持する。
// 平文は発行時に一度だけ返す。
package accesscode

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	codeBytes  = 10 // base32で16文字
	groupSize  = 4
	codeLength = 16
	prefixLen  = groupSize
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Generate は新しいアクセスコードを生成する。
// 平文のコード（XXXX-XXXX-XXXX-XXXX形式）、検索用プレフィックス、bcryptハッシュを返す。
func Generate(bcryptCost int) (rawCode, prefix, hash string, err error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	canonical := encoding.EncodeToString(b)
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(canonical), bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing access code: %w", err)
	}

	return format(canonical), canonical[:prefixLen], string(hashBytes), nil
}

// Normalize は利用者が入力したコードを正規化する。
// 空白とハイフンを除去して大文字化し、形式が不正な場合はfalseを返す。
func Normalize(input string) (string, bool) {
	var sb strings.Builder
	for _, r := range strings.ToUpper(input) {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			continue
		case (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7'):
			sb.WriteRune(r)
		default:
			return "", false
		}
	}
	code := sb.String()
	if len(code) != codeLength {
		return "", false
	}
	return code, true
}

// Prefix は正規化済みコードの検索用プレフィックスを返す。
func Prefix(canonical string) string {
	return canonical[:prefixLen]
}

// Matches は正規化済みコードがハッシュと一致するかを返す。
func Matches(canonical, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(canonical)) == nil
}

func format(canonical string) string {
	groups := make([]string, 0, len(canonical)/groupSize)
	for i := 0; i < len(canonical); i += groupSize {
		groups = append(groups, canonical[i:i+groupSize])
	}
	return strings.Join(groups, "-")
}
