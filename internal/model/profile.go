// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role はBlog OS上の権限区分を表す。
// 空文字列はロール未設定（null）を意味する。
type Role string

const (
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "admin"
	// RoleCustomer は顧客ロール。
	RoleCustomer Role = "customer"
	// RoleNone はロール未設定を表す。
	RoleNone Role = ""
)

// ParseRole は文字列をRoleに変換する。未知の値はfalseを返す。
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleCustomer:
		return RoleCustomer, true
	case RoleNone:
		return RoleNone, true
	default:
		return RoleNone, false
	}
}

// Profile はIdentityに紐づく永続化されたプロフィールを表す。
// 初回のアクセスコード引き換え時に作成され、管理者操作で更新される。
type Profile struct {
	UserID    string
	Email     string
	Role      Role
	IsBanned  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccessStatus はリクエスト単位で導出されるアクセス判定結果。
// 永続化されず、IdentityとProfileから毎回計算する。
type AccessStatus struct {
	HasAccess bool `json:"hasAccess"`
	IsBanned  bool `json:"isBanned"`
	Role      Role `json:"role"`
}

// IsAdmin は管理者としてアクセス可能かどうかを返す。
func (s AccessStatus) IsAdmin() bool {
	return s.HasAccess && s.Role == RoleAdmin
}

// NoAccess はアクセス権なしの判定結果。
var NoAccess = AccessStatus{}

// AccessCode は顧客のオンボーディングに使う一回限りのアクセスコード。
// 平文のコードは保存せず、プレフィックスとbcryptハッシュのみを保持する。
type AccessCode struct {
	ID         string
	CodePrefix string
	CodeHash   string
	CreatedBy  string
	ExpiresAt  time.Time
	RedeemedBy string
	RedeemedAt *time.Time
	CreatedAt  time.Time
}

// IsRedeemable は指定時刻においてコードが引き換え可能かどうかを返す。
func (c *AccessCode) IsRedeemable(now time.Time) bool {
	return c.RedeemedAt == nil && now.Before(c.ExpiresAt)
}

// ProfileStats は管理ダッシュボード向けの集計値。
type ProfileStats struct {
	TotalProfiles          int `json:"totalProfiles"`
	Admins                 int `json:"admins"`
	Customers              int `json:"customers"`
	Banned                 int `json:"banned"`
	OutstandingAccessCodes int `json:"outstandingAccessCodes"`
}
