// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, access, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 想定外の障害を表す番兵エラー。
// 想定内の拒否（未認証・BANなど）はエラーではなく判定結果として返す。
var (
	// ErrConfigurationMissing は特権接続情報などの必須設定が欠けている場合に返す。
	ErrConfigurationMissing = errors.New("configuration missing")
	// ErrUpstreamFetchFailed はデータストアへの問い合わせに失敗した場合に返す。
	ErrUpstreamFetchFailed = errors.New("upstream fetch failed")
	// ErrProfileNotFound は対象のプロフィールが存在しない場合に返す。
	ErrProfileNotFound = errors.New("profile not found")
)

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated     = "NOT_AUTHENTICATED"
	ErrCodeCookieMissing        = "COOKIE_MISSING"
	ErrCodeSessionMismatch      = "SESSION_MISMATCH"
	ErrCodeAccessRevoked        = "ACCESS_REVOKED"
	ErrCodeAccountBanned        = "ACCOUNT_BANNED"
	ErrCodeConfigurationMissing = "CONFIGURATION_MISSING"
	ErrCodeUpstreamFetchFailed  = "UPSTREAM_FETCH_FAILED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInvalidAccessCode    = "INVALID_ACCESS_CODE"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewNotAuthenticatedError は未認証エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "サインインしてから再度お試しください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "access",
		Action:   "管理者に権限の付与を依頼してください。",
	}
}

// NewAccessRevokedError はアクセス権がない場合のエラーを生成する。
func NewAccessRevokedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessRevoked,
		Message:  "このアカウントにはアクセス権がありません。",
		Category: "access",
		Action:   "/access でアクセスコードを入力してください。",
	}
}

// NewAccountBannedError はBANされたアカウントのエラーを生成する。
func NewAccountBannedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountBanned,
		Message:  "このアカウントは利用停止されています。",
		Category: "access",
		Action:   "心当たりがない場合はサポートへお問い合わせください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "試行回数が上限に達しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidAccessCodeError は無効なアクセスコードのエラーを生成する。
func NewInvalidAccessCodeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAccessCode,
		Message:  "アクセスコードが無効か、有効期限が切れています。",
		Category: "validation",
		Action:   "コードを確認して再度入力してください。",
	}
}

// NewInvalidRequestError はリクエスト内容の検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を修正して再度お試しください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("指定されたプロフィールが見つかりません: %s", userID),
		Category: "access",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewConfigurationMissingError は特権設定が欠けている場合のエラーを生成する。
// 内部の詳細はクライアントに返さない。
func NewConfigurationMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeConfigurationMissing,
		Message:  "この操作は現在利用できません。",
		Category: "system",
		Action:   "運営者へお問い合わせください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "時間をおいて再度お試しください。",
	}
}
