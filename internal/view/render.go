// Package view は申し立てページのHTMLコンポーネントを提供する。
package view

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/hitoshi/banappeal/internal/model"
)

// Page はレイアウトに埋め込む1ページ分の内容。
type Page struct {
	Title     string
	Identity  *model.Identity // ヘッダーに表示するログイン中のユーザー。未ログインはnil
	CSRFToken string
	Body      templ.Component // Layoutの子要素として描画する
}

// PageHandler はページ全体をレンダリングするhttp.Handlerを返す。
// templ.Handlerはバッファに描画してから書き込むため、失敗時に途中までのHTMLは送信されない。
func PageHandler(statusCode int, page Page, options ...func(*templ.ComponentHandler)) http.Handler {
	if statusCode <= 0 {
		statusCode = http.StatusOK
	}
	opts := append([]func(*templ.ComponentHandler){templ.WithStatus(statusCode)}, options...)
	h := templ.Handler(withChildren(Layout(page), page.Body), opts...)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		h.ServeHTTP(w, r)
	})
}

// withChildren はchildrenを子要素としてparentを描画する。
func withChildren(parent, children templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return parent.Render(templ.WithChildren(ctx, children), w)
	})
}

// htmlWriter は書き込みエラーを保持するio.Writerのラッパー。
// 最初のエラー以降の書き込みは行わない。
type htmlWriter struct {
	w   io.Writer
	err error
}

// raw はエスケープせずに書き込む。
func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

// text はHTMLエスケープして書き込む。属性値にも使用できる。
func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

// url はURLを検査してから属性値として書き込む。
func (hw *htmlWriter) url(s string) {
	hw.text(string(templ.URL(s)))
}

// component は子コンポーネントを書き込む。
func (hw *htmlWriter) component(ctx context.Context, c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(ctx, hw.w)
}

// component は関数をtempl.Componentに変換する。
func component(fn func(ctx context.Context, hw *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{w: w}
		fn(ctx, hw)
		return hw.err
	})
}
