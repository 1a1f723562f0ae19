package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestDiscordOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/auth/discord/callback",
	})

	raw := provider.GetLoginURL("test-state-value")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", raw, err)
	}
	if got := u.Scheme + "://" + u.Host + u.Path; got != defaultDiscordAuthURL {
		t.Errorf("endpoint = %q, want %q", got, defaultDiscordAuthURL)
	}

	q := u.Query()
	tests := []struct {
		key  string
		want string
	}{
		{"client_id", "test-client-id"},
		{"redirect_uri", "http://localhost:8080/auth/discord/callback"},
		{"state", "test-state-value"},
		{"response_type", "code"},
		{"scope", "identify"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := q.Get(tt.key); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	// Discordの既定の同意フローに任せる
	if q.Has("prompt") {
		t.Errorf("prompt should not be set, got %q", q.Get("prompt"))
	}
}

func newDiscordTestServers(t *testing.T, user map[string]interface{}) (token, userInfo *httptest.Server) {
	t.Helper()

	token = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("code"); got != "test-code" {
			t.Errorf("code = %q, want test-code", got)
		}
		if got := r.PostForm.Get("client_secret"); got != "test-client-secret" {
			t.Errorf("client_secret = %q, want test-client-secret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "test-access-token",
			"token_type":    "Bearer",
			"expires_in":    604800,
			"refresh_token": "test-refresh-token",
			"scope":         "identify",
		})
	}))
	t.Cleanup(token.Close)

	userInfo = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-access-token" {
			t.Errorf("unexpected Authorization header: %q", got)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(user)
	}))
	t.Cleanup(userInfo.Close)

	return token, userInfo
}

func TestDiscordOAuthProvider_ExchangeCode_Success(t *testing.T) {
	tokenServer, userInfoServer := newDiscordTestServers(t, map[string]interface{}{
		"id":          "80351110224678912",
		"username":    "nelly",
		"global_name": "Nelly",
		"avatar":      "a_8342729096ea3675442027381ff50dfe",
	})

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/auth/discord/callback",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	info, err := provider.ExchangeCode(context.Background(), "test-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	want := OAuthUserInfo{
		ID:         "80351110224678912",
		Username:   "nelly",
		GlobalName: "Nelly",
		Avatar:     "a_8342729096ea3675442027381ff50dfe",
	}
	if *info != want {
		t.Errorf("ExchangeCode() = %+v, want %+v", *info, want)
	}
}

func TestDiscordOAuthProvider_ExchangeCode_NullableFields(t *testing.T) {
	tokenServer, userInfoServer := newDiscordTestServers(t, map[string]interface{}{
		"id":          "42",
		"username":    "alice",
		"global_name": nil,
		"avatar":      nil,
	})

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	info, err := provider.ExchangeCode(context.Background(), "test-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if info.GlobalName != "" || info.Avatar != "" || info.Email != "" {
		t.Errorf("ExchangeCode() = %+v, want empty optional fields", info)
	}
	if got := DisplayName(info); got != "alice" {
		t.Errorf("DisplayName() = %q, want alice", got)
	}
}

func TestDiscordOAuthProvider_ExchangeCode_TokenError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer tokenServer.Close()

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID: "test-client-id",
		TokenURL: tokenServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Fatal("expected error for invalid grant")
	}
}

func TestDiscordOAuthProvider_ExchangeCode_UserInfoError(t *testing.T) {
	tokenServer, _ := newDiscordTestServers(t, nil)
	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer userInfoServer.Close()

	provider := NewDiscordOAuthProvider(DiscordOAuthConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		TokenURL:     tokenServer.URL,
		UserInfoURL:  userInfoServer.URL,
	})

	if _, err := provider.ExchangeCode(context.Background(), "test-code"); err == nil {
		t.Fatal("expected error for user info failure")
	}
}

func TestAvatarURL(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		hash   string
		want   string
	}{
		{"static", "42", "abc", "https://cdn.discordapp.com/avatars/42/abc.png"},
		{"animated", "42", "a_abc", "https://cdn.discordapp.com/avatars/42/a_abc.gif"},
		{"default", "80351110224678912", "", "https://cdn.discordapp.com/embed/avatars/5.png"},
		{"default small id", "42", "", "https://cdn.discordapp.com/embed/avatars/0.png"},
		{"default invalid id", "abc", "", "https://cdn.discordapp.com/embed/avatars/0.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AvatarURL(tt.userID, tt.hash); got != tt.want {
				t.Errorf("AvatarURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
