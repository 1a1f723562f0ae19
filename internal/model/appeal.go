package model

import "time"

// AppealStatusPendingReview は送信直後にローカルで設定するステータス。
const AppealStatusPendingReview = "Pending review"

// Appeal はBAN解除の申し立てを表す。
type Appeal struct {
	Status        string `json:"status,omitempty"`
	Reason        string `json:"reason"`
	Solution      string `json:"solution"`
	Future        string `json:"future"`
	Extra         string `json:"extra"`
	GuildID       string `json:"guild"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
	Email         string `json:"email"`
}

// FormDraft はユーザーが入力中の申し立てフォーム。
// 送信に成功すると破棄される。
type FormDraft struct {
	Reason   string `json:"reason"`
	Solution string `json:"solution"`
	Future   string `json:"future"`
	Extra    string `json:"extra"`
}

// ViewState はページに表示する画面状態。
type ViewState string

const (
	ViewLoading         ViewState = "loading"
	ViewUnauthenticated ViewState = "unauthenticated"
	ViewNotBanned       ViewState = "not_banned"
	ViewBannedForm      ViewState = "banned_form"
	ViewBannedPending   ViewState = "banned_pending"
)

// SubmissionOutcome は申し立て送信の結果区分。
type SubmissionOutcome string

const (
	OutcomeAccepted     SubmissionOutcome = "accepted"
	OutcomeRejected     SubmissionOutcome = "rejected"
	OutcomeNoProfile    SubmissionOutcome = "no_profile"
	OutcomeTransportErr SubmissionOutcome = "transport_error"
)

// SubmissionAttempt は申し立て送信の監査ログ1件を表す。
type SubmissionAttempt struct {
	ID            string
	IdentityID    string
	UserProfileID string
	GuildID       string
	Outcome       SubmissionOutcome
	RemoteStatus  int
	CreatedAt     time.Time
}
