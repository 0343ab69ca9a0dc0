package session

import (
	"context"
	"net/http"

	"github.com/DUFF420/blog-saas-tool1-sub001/internal/identity"
	"github.com/DUFF420/blog-saas-tool1-sub001/internal/model"
)

// Reason は検証失敗の理由。
type Reason string

// 検証失敗の理由。評価順に並べている。
const (
	ReasonNotAuthenticated Reason = "not_authenticated"
	ReasonCookieMissing    Reason = "cookie_missing"
	ReasonSessionMismatch  Reason = "session_mismatch"
	ReasonAccessRevoked    Reason = "access_revoked"
	ReasonAccountBanned    Reason = "account_banned"
)

// HTTPStatus は理由に対応するHTTPステータスコードを返す。
func (r Reason) HTTPStatus() int {
	switch r {
	case ReasonAccessRevoked, ReasonAccountBanned:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// Verdict はValidateの判定結果。
type Verdict struct {
	Valid  bool
	Reason Reason
	UserID string
	Role   model.Role
}

// StatusResolver はIdentityのアクセス判定を導出するインターフェース。
type StatusResolver interface {
	Resolve(ctx context.Context, id *identity.Identity) (model.AccessStatus, error)
}

// VerdictRecorder は検証結果を記録するインターフェース。
type VerdictRecorder interface {
	RecordSessionValidation(reason string)
}

// Validator はリクエストのIdentity・Cookie・AccessStatusの整合性を検証する。
type Validator struct {
	resolver StatusResolver
	recorder VerdictRecorder
}

// NewValidator は新しいValidatorを生成する。recorderはnil可。
func NewValidator(resolver StatusResolver, recorder VerdictRecorder) *Validator {
	return &Validator{resolver: resolver, recorder: recorder}
}

// Validate はリクエストを検証する。最初に失敗したチェックで打ち切る。
// 想定内の拒否はVerdictで返し、データストアの障害のみエラーで返す。
func (v *Validator) Validate(r *http.Request) (Verdict, error) {
	id := identity.FromContext(r.Context())
	if id == nil {
		return v.deny(ReasonNotAuthenticated), nil
	}

	cookie, err := r.Cookie(AccessCookieName)
	if err != nil || cookie.Value == "" {
		return v.deny(ReasonCookieMissing), nil
	}

	if cookie.Value != id.UserID {
		return v.deny(ReasonSessionMismatch), nil
	}

	status, err := v.resolver.Resolve(r.Context(), id)
	if err != nil {
		v.record("error")
		return Verdict{}, err
	}

	// BANされたプロフィールはHasAccess=falseでもあるため、
	// BANを伴わないアクセス喪失のみをaccess_revokedとする。
	if !status.HasAccess && !status.IsBanned {
		return v.deny(ReasonAccessRevoked), nil
	}
	if status.IsBanned {
		return v.deny(ReasonAccountBanned), nil
	}

	v.record("valid")
	return Verdict{Valid: true, UserID: id.UserID, Role: status.Role}, nil
}

func (v *Validator) deny(reason Reason) Verdict {
	v.record(string(reason))
	return Verdict{Valid: false, Reason: reason}
}

func (v *Validator) record(label string) {
	if v.recorder != nil {
		v.recorder.RecordSessionValidation(label)
	}
}
