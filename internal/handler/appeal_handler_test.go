package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/banappeal/internal/appeal"
	"github.com/hitoshi/banappeal/internal/middleware"
	"github.com/hitoshi/banappeal/internal/model"
)

// --- モック定義 ---

type mockAppealService struct {
	loadFn   func(ctx context.Context, session model.Session) (*appeal.State, error)
	submitFn func(ctx context.Context, session model.Session, draft model.FormDraft) (*appeal.State, error)
}

func (m *mockAppealService) Load(ctx context.Context, session model.Session) (*appeal.State, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, session)
	}
	return &appeal.State{Session: session, View: model.ViewUnauthenticated}, nil
}

func (m *mockAppealService) SubmitDraft(ctx context.Context, session model.Session, draft model.FormDraft) (*appeal.State, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, session, draft)
	}
	return nil, nil
}

var testIdentity = &model.Identity{
	ID:          "42",
	DisplayName: "Ash",
	AvatarURL:   "https://cdn.discordapp.com/avatars/42/abc.png",
	Email:       "ash@example.com",
}

func testBan() *model.BanRecord {
	return &model.BanRecord{
		Reason: "spam",
		User:   model.BanUser{ID: "42", Username: "ash", Discriminator: "0001", Avatar: "abc"},
	}
}

func withSession(req *http.Request) *http.Request {
	return req.WithContext(middleware.ContextWithSession(req.Context(), model.Session{
		Status:   model.SessionAuthenticated,
		Identity: testIdentity,
	}))
}

func bannedState(session model.Session, pending *model.Appeal) *appeal.State {
	v := model.ViewBannedForm
	if pending != nil {
		v = model.ViewBannedPending
	}
	return &appeal.State{
		Session: session,
		Ban:     testBan(),
		Profile: &model.UserProfile{ID: "u42"},
		Appeal:  pending,
		View:    v,
	}
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ban-appeals", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withSession(req)
}

// --- テスト ---

func TestAppealHandler_Page_RendersByView(t *testing.T) {
	tests := []struct {
		name         string
		authed       bool
		state        func(model.Session) *appeal.State
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:   "unauthenticated",
			authed: false,
			state: func(s model.Session) *appeal.State {
				return &appeal.State{Session: s, View: model.ViewUnauthenticated}
			},
			wantContains: []string{"Login with Discord", "/auth/discord/login"},
			wantAbsent:   []string{"<textarea"},
		},
		{
			name:   "not banned",
			authed: true,
			state: func(s model.Session) *appeal.State {
				return &appeal.State{Session: s, View: model.ViewNotBanned}
			},
			wantContains: []string{"not banned", "Logged in as: @Ash"},
			wantAbsent:   []string{"<textarea"},
		},
		{
			name:   "banned without appeal",
			authed: true,
			state: func(s model.Session) *appeal.State {
				return bannedState(s, nil)
			},
			wantContains: []string{"Ban Reason:</strong> spam", "<textarea", "Submit Appeal"},
		},
		{
			name:   "banned with pending appeal",
			authed: true,
			state: func(s model.Session) *appeal.State {
				return bannedState(s, &model.Appeal{Status: model.AppealStatusPendingReview})
			},
			wantContains: []string{"Your appeal is pending review."},
			wantAbsent:   []string{"<textarea"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAppealService{
				loadFn: func(ctx context.Context, session model.Session) (*appeal.State, error) {
					return tt.state(session), nil
				},
			}
			h := NewAppealHandler(svc, nil)

			req := httptest.NewRequest(http.MethodGet, "/ban-appeals", nil)
			if tt.authed {
				req = withSession(req)
			}
			w := httptest.NewRecorder()
			h.Page(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q, want text/html", ct)
			}
			body := w.Body.String()
			for _, s := range tt.wantContains {
				if !strings.Contains(body, s) {
					t.Errorf("body should contain %q", s)
				}
			}
			for _, s := range tt.wantAbsent {
				if strings.Contains(body, s) {
					t.Errorf("body should not contain %q", s)
				}
			}
		})
	}
}

func TestAppealHandler_Page_LoadError(t *testing.T) {
	svc := &mockAppealService{
		loadFn: func(ctx context.Context, session model.Session) (*appeal.State, error) {
			return nil, errors.New("connection refused")
		},
	}
	h := NewAppealHandler(svc, nil)

	w := httptest.NewRecorder()
	h.Page(w, withSession(httptest.NewRequest(http.MethodGet, "/ban-appeals", nil)))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unreachable") {
		t.Error("body should describe the upstream failure")
	}
}

func TestAppealHandler_SubmitForm_RedirectsOnSuccess(t *testing.T) {
	var got model.FormDraft
	svc := &mockAppealService{
		submitFn: func(ctx context.Context, session model.Session, draft model.FormDraft) (*appeal.State, error) {
			got = draft
			return bannedState(session, &model.Appeal{Status: model.AppealStatusPendingReview}), nil
		},
	}
	h := NewAppealHandler(svc, nil)

	w := httptest.NewRecorder()
	h.SubmitForm(w, formRequest(url.Values{
		"reason":   {"I spammed"},
		"solution": {"read the rules"},
		"future":   {"no more spam"},
		"extra":    {""},
	}))

	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != PagePath {
		t.Errorf("Location = %q, want %q", loc, PagePath)
	}
	want := model.FormDraft{Reason: "I spammed", Solution: "read the rules", Future: "no more spam"}
	if got != want {
		t.Errorf("draft = %+v, want %+v", got, want)
	}
}

func TestAppealHandler_SubmitForm_Errors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		withState    bool
		wantStatus   int
		wantContains []string
	}{
		{
			name:         "rejected keeps draft",
			err:          model.NewAppealRejectedError(500),
			withState:    true,
			wantStatus:   http.StatusBadGateway,
			wantContains: []string{"could not be submitted", "&lt;b&gt;sorry&lt;/b&gt;", "<textarea"},
		},
		{
			name:         "reason required",
			err:          model.NewReasonRequiredError(),
			withState:    true,
			wantStatus:   http.StatusBadRequest,
			wantContains: []string{"why you were banned", "<textarea"},
		},
		{
			name:         "submission in progress",
			err:          model.NewSubmissionInProgressError(),
			withState:    true,
			wantStatus:   http.StatusConflict,
			wantContains: []string{"already being submitted"},
		},
		{
			name:         "unauthorized",
			err:          model.NewUnauthorizedError(),
			wantStatus:   http.StatusUnauthorized,
			wantContains: []string{"Login with Discord"},
		},
		{
			name:         "submit without ban",
			err:          appeal.ErrSubmitWithoutBan,
			withState:    true,
			wantStatus:   http.StatusInternalServerError,
			wantContains: []string{"Something went wrong"},
		},
		{
			name:         "transport failure before load",
			err:          errors.New("connection refused"),
			wantStatus:   http.StatusBadGateway,
			wantContains: []string{"unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAppealService{
				submitFn: func(ctx context.Context, session model.Session, draft model.FormDraft) (*appeal.State, error) {
					if !tt.withState {
						return nil, tt.err
					}
					return bannedState(session, nil), tt.err
				},
			}
			h := NewAppealHandler(svc, nil)

			w := httptest.NewRecorder()
			h.SubmitForm(w, formRequest(url.Values{"reason": {"<b>sorry</b>"}}))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := w.Body.String()
			for _, s := range tt.wantContains {
				if !strings.Contains(body, s) {
					t.Errorf("body should contain %q\nbody: %s", s, body)
				}
			}
		})
	}
}

func TestAppealHandler_State_ReturnsJSON(t *testing.T) {
	svc := &mockAppealService{
		loadFn: func(ctx context.Context, session model.Session) (*appeal.State, error) {
			return bannedState(session, nil), nil
		},
	}
	h := NewAppealHandler(svc, nil)

	w := httptest.NewRecorder()
	h.State(w, withSession(httptest.NewRequest(http.MethodGet, "/api/appeal/state", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got struct {
		View     string           `json:"view"`
		Ban      *model.BanRecord `json:"ban"`
		Appeal   *model.Appeal    `json:"appeal"`
		Identity *model.Identity  `json:"identity"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.View != "banned_form" {
		t.Errorf("view = %q, want banned_form", got.View)
	}
	if got.Ban == nil || got.Ban.Reason != "spam" {
		t.Errorf("ban = %+v", got.Ban)
	}
	if got.Appeal != nil {
		t.Errorf("appeal = %+v, want nil", got.Appeal)
	}
	if got.Identity == nil || got.Identity.ID != "42" {
		t.Errorf("identity = %+v", got.Identity)
	}
}

func TestAppealHandler_State_LoadError(t *testing.T) {
	svc := &mockAppealService{
		loadFn: func(ctx context.Context, session model.Session) (*appeal.State, error) {
			return nil, errors.New("timeout")
		},
	}
	h := NewAppealHandler(svc, nil)

	w := httptest.NewRecorder()
	h.State(w, withSession(httptest.NewRequest(http.MethodGet, "/api/appeal/state", nil)))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	var body middleware.ErrorResponseBody
	json.NewDecoder(w.Body).Decode(&body)
	if body.Code != "UPSTREAM_UNAVAILABLE" {
		t.Errorf("code = %q, want UPSTREAM_UNAVAILABLE", body.Code)
	}
}

func TestAppealHandler_Submit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"created", `{"reason":"I spammed"}`, nil, http.StatusCreated, ""},
		{"malformed JSON", `{"reason":`, nil, http.StatusBadRequest, model.ErrCodeInvalidRequest},
		{"reason required", `{"reason":""}`, model.NewReasonRequiredError(), http.StatusBadRequest, model.ErrCodeReasonRequired},
		{"not banned", `{"reason":"x"}`, model.NewNotBannedError(), http.StatusConflict, model.ErrCodeNotBanned},
		{"appeal exists", `{"reason":"x"}`, model.NewAppealExistsError(), http.StatusConflict, model.ErrCodeAppealExists},
		{"rejected", `{"reason":"x"}`, model.NewAppealRejectedError(500), http.StatusBadGateway, model.ErrCodeAppealRejected},
		{"user not found", `{"reason":"x"}`, model.NewUserNotFoundError(), http.StatusBadGateway, model.ErrCodeUserNotFound},
		{"without ban", `{"reason":"x"}`, appeal.ErrSubmitWithoutBan, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"transport", `{"reason":"x"}`, errors.New("EOF"), http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAppealService{
				submitFn: func(ctx context.Context, session model.Session, draft model.FormDraft) (*appeal.State, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return bannedState(session, &model.Appeal{Status: model.AppealStatusPendingReview, Reason: draft.Reason}), nil
				},
			}
			h := NewAppealHandler(svc, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/appeal", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			h.Submit(w, withSession(req))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				var got stateResponse
				if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if got.View != model.ViewBannedPending {
					t.Errorf("view = %q, want banned_pending", got.View)
				}
				if got.Appeal == nil || got.Appeal.Status != model.AppealStatusPendingReview {
					t.Errorf("appeal = %+v", got.Appeal)
				}
				return
			}
			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}
