package appeal

import (
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/banappeal/internal/model"
)

// MaxFieldLength は自由記述欄1つあたりの最大文字数。
const MaxFieldLength = 2000

// NormalizeDraft はフォーム入力の前後の空白を除去し、入力規則を検証する。
// 本文は書かれたとおりに送信する。HTMLとしての無害化は表示側で行う。
// reasonは必須。
func NormalizeDraft(draft model.FormDraft) (model.FormDraft, error) {
	out := model.FormDraft{
		Reason:   strings.TrimSpace(draft.Reason),
		Solution: strings.TrimSpace(draft.Solution),
		Future:   strings.TrimSpace(draft.Future),
		Extra:    strings.TrimSpace(draft.Extra),
	}

	if out.Reason == "" {
		return out, model.NewReasonRequiredError()
	}

	fields := []struct {
		name  string
		value string
	}{
		{"reason", out.Reason},
		{"solution", out.Solution},
		{"future", out.Future},
		{"extra", out.Extra},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > MaxFieldLength {
			return out, model.NewFieldTooLongError(f.name, MaxFieldLength)
		}
	}

	return out, nil
}
