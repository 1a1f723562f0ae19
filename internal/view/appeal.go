package view

import (
	"context"

	"github.com/a-h/templ"

	"github.com/hitoshi/banappeal/internal/model"
)

// LoginPath はDiscordログインを開始するパス。
const LoginPath = "/auth/discord/login"

// formField は申し立てフォームの入力欄。
type formField struct {
	name     string
	label    string
	required bool
}

var formFields = []formField{
	{"reason", "Do you know why you were banned? (Required)", true},
	{"solution", "Have you taken any steps to rectify the situation?", false},
	{"future", "What steps will you take to ensure it doesn't happen again?", false},
	{"extra", "Anything else to add? (Optional)", false},
}

// AppealForm は申し立て画面の表示内容。
type AppealForm struct {
	Ban       *model.BanRecord
	Appeal    *model.Appeal   // 審査待ちの申し立て。nilの場合はフォームを表示する
	Draft     model.FormDraft // 送信失敗時に保持する入力内容
	Error     *model.APIError // フォーム上部に表示するエラー
	CSRFToken string
}

// Loading はセッション解決中の表示。
func Loading() templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<p>Loading...</p>`)
	})
}

// Login は未ログイン時の表示。
func Login(apiErr *model.APIError) templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		hw.component(ctx, ErrorPanel(apiErr))
		hw.raw(`<p><a class="button" href="`)
		hw.url(LoginPath)
		hw.raw(`">Login with Discord</a></p>`)
	})
}

// NotBanned はBANされていないユーザーへの表示。
func NotBanned() templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<p>`)
		hw.text(model.NewNotBannedError().Message)
		hw.raw(`</p>`)
	})
}

// BanAppeal はBAN理由と、審査待ちの表示または申し立てフォームを表示する。
func BanAppeal(form AppealForm) templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<h1>Ban Appeal</h1>`)
		if form.Ban != nil {
			hw.raw(`<p><strong>Ban Reason:</strong> `)
			hw.text(form.Ban.Reason)
			hw.raw(`</p>`)
		}

		if form.Appeal != nil {
			hw.raw(`<p class="pending">`)
			hw.text(model.NewAppealExistsError().Message)
			hw.raw(`</p>`)
			return
		}

		hw.component(ctx, ErrorPanel(form.Error))

		values := map[string]string{
			"reason":   form.Draft.Reason,
			"solution": form.Draft.Solution,
			"future":   form.Draft.Future,
			"extra":    form.Draft.Extra,
		}

		hw.raw(`<form method="post" action="/ban-appeals">`)
		hw.component(ctx, csrfField(form.CSRFToken))
		for _, f := range formFields {
			hw.raw(`<div><label for="`)
			hw.text(f.name)
			hw.raw(`">`)
			hw.text(f.label)
			hw.raw(`</label><textarea id="`)
			hw.text(f.name)
			hw.raw(`" name="`)
			hw.text(f.name)
			hw.raw(`"`)
			if f.required {
				hw.raw(` required`)
			}
			hw.raw(`>`)
			hw.text(values[f.name])
			hw.raw(`</textarea></div>`)
		}
		hw.raw(`<p><button type="submit">Submit Appeal</button></p></form>`)
	})
}

// ErrorPanel はエラーメッセージと対処方法を表示する。apiErrがnilの場合は何も出力しない。
func ErrorPanel(apiErr *model.APIError) templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		if apiErr == nil {
			return
		}
		hw.raw(`<div class="error" role="alert"><p>`)
		hw.text(apiErr.Message)
		hw.raw(`</p>`)
		if apiErr.Action != "" {
			hw.raw(`<p>`)
			hw.text(apiErr.Action)
			hw.raw(`</p>`)
		}
		hw.raw(`</div>`)
	})
}
