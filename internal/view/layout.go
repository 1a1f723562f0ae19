package view

import (
	"context"

	"github.com/a-h/templ"
)

const stylesheet = `body{font-family:system-ui,sans-serif;background:#111827;color:#f9fafb;margin:0}
main{max-width:42rem;margin:2.5rem auto;padding:1.5rem;background:#1f2937;border:1px solid #374151;border-radius:.5rem}
header.account{display:flex;align-items:center;gap:1rem;padding:.5rem;background:#3b82f6}
header.account img{width:50px;height:50px;border-radius:50%;object-fit:cover}
h1{text-align:center;color:#60a5fa}
label{display:block;font-weight:600;margin:.75rem 0 .25rem}
textarea{width:100%;min-height:4rem;padding:.5rem;border-radius:.25rem;background:#111827;color:inherit;border:1px solid #4b5563}
button,.button{display:inline-block;padding:.5rem 1rem;border:0;border-radius:.25rem;background:#3b82f6;color:#fff;font-weight:700;text-decoration:none;cursor:pointer}
.pending{color:#facc15;text-align:center}
.error{border:1px solid #f87171;color:#fecaca;padding:.5rem 1rem;border-radius:.25rem}`

// Layout はページ全体のHTMLを生成する。本文はコンテキストの子要素から描画する。
func Layout(page Page) templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		children := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)

		title := page.Title
		if title == "" {
			title = "Ban Appeal"
		}

		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title>`)
		hw.component(ctx, templ.Raw("<style>"+stylesheet+"</style>"))
		hw.raw(`</head><body><main>`)
		if page.Identity != nil {
			hw.component(ctx, AccountHeader(page.Identity.DisplayName, page.Identity.AvatarURL, page.CSRFToken))
		}
		hw.component(ctx, children)
		hw.raw(`</main></body></html>`)
	})
}

// AccountHeader はログイン中のユーザーとログアウトボタンを表示する。
func AccountHeader(displayName, avatarURL, csrfToken string) templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<header class="account">`)
		if avatarURL != "" {
			hw.raw(`<img src="`)
			hw.url(avatarURL)
			hw.raw(`" alt="User Avatar">`)
		}
		hw.raw(`<p>Logged in as: @`)
		hw.text(displayName)
		hw.raw(`</p><form method="post" action="/auth/logout">`)
		hw.component(ctx, csrfField(csrfToken))
		hw.raw(`<button type="submit">Log out</button></form></header>`)
	})
}

func csrfField(token string) templ.Component {
	return component(func(ctx context.Context, hw *htmlWriter) {
		hw.raw(`<input type="hidden" name="csrf_token" value="`)
		hw.text(token)
		hw.raw(`">`)
	})
}
