package appeal

import "github.com/hitoshi/banappeal/internal/model"

// ResolveView はセッションと取得済みデータから表示する画面を決定する。
// BANレコードがなければユーザー情報・申し立ての有無に関わらずnot_bannedとなる。
func ResolveView(session model.Session, ban *model.BanRecord, appeal *model.Appeal) model.ViewState {
	switch {
	case session.Status == model.SessionLoading:
		return model.ViewLoading
	case !session.Authenticated():
		return model.ViewUnauthenticated
	case ban == nil:
		return model.ViewNotBanned
	case appeal != nil:
		return model.ViewBannedPending
	default:
		return model.ViewBannedForm
	}
}
