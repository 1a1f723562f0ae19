package appeal

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/banappeal/internal/model"
)

func TestNormalizeDraft(t *testing.T) {
	tests := []struct {
		name     string
		draft    model.FormDraft
		want     model.FormDraft
		wantCode string
	}{
		{
			name:  "plain text kept",
			draft: model.FormDraft{Reason: "I posted spam", Solution: "read rules", Future: "be nice", Extra: ""},
			want:  model.FormDraft{Reason: "I posted spam", Solution: "read rules", Future: "be nice", Extra: ""},
		},
		{
			name:  "surrounding whitespace trimmed",
			draft: model.FormDraft{Reason: "  I posted spam\n", Solution: "\tread rules "},
			want:  model.FormDraft{Reason: "I posted spam", Solution: "read rules"},
		},
		{
			name:  "angle brackets kept as written",
			draft: model.FormDraft{Reason: "I thought a<b and c>d was fine"},
			want:  model.FormDraft{Reason: "I thought a<b and c>d was fine"},
		},
		{
			name:  "entities not decoded",
			draft: model.FormDraft{Reason: "&lt;script&gt;alert(1)&lt;/script&gt;"},
			want:  model.FormDraft{Reason: "&lt;script&gt;alert(1)&lt;/script&gt;"},
		},
		{
			name:  "markup kept as written",
			draft: model.FormDraft{Reason: "<b>sorry</b>", Extra: "Tom & Jerry's fault"},
			want:  model.FormDraft{Reason: "<b>sorry</b>", Extra: "Tom & Jerry's fault"},
		},
		{
			name:     "empty reason",
			draft:    model.FormDraft{Solution: "something"},
			wantCode: model.ErrCodeReasonRequired,
		},
		{
			name:     "whitespace reason",
			draft:    model.FormDraft{Reason: "   \n\t"},
			wantCode: model.ErrCodeReasonRequired,
		},
		{
			name:     "too long",
			draft:    model.FormDraft{Reason: "ok", Future: strings.Repeat("a", MaxFieldLength+1)},
			wantCode: model.ErrCodeFieldTooLong,
		},
		{
			name:  "multibyte at limit",
			draft: model.FormDraft{Reason: strings.Repeat("あ", MaxFieldLength)},
			want:  model.FormDraft{Reason: strings.Repeat("あ", MaxFieldLength)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDraft(tt.draft)

			if tt.wantCode != "" {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
					t.Fatalf("NormalizeDraft() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeDraft() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeDraft() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
