package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAPIKey_IsValid(t *testing.T) {
	now := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name     string
		key      *APIKey
		expected bool
	}{
		{name: "有效密钥", key: &APIKey{}, expected: true},
		{name: "禁用密钥", key: &APIKey{Disabled: true}, expected: false},
		{name: "未过期密钥", key: &APIKey{ExpiresAt: &future}, expected: true},
		{name: "已过期密钥", key: &APIKey{ExpiresAt: &past}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.IsValid(now); got != tt.expected {
				t.Errorf("IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAPIKey_HasScope(t *testing.T) {
	read := &APIKey{Scopes: []string{ScopeRead}}
	write := &APIKey{Scopes: []string{ScopeWrite}}
	all := &APIKey{Scopes: []string{ScopeAll}}

	if !read.HasScope(ScopeRead) || read.HasScope(ScopeWrite) {
		t.Error("read key scopes wrong")
	}
	if !write.HasScope(ScopeRead) || !write.HasScope(ScopeWrite) {
		t.Error("write key should include read")
	}
	if !all.HasScope(ScopeWrite) {
		t.Error("* should include everything")
	}
}

func TestKeyStore_Authenticate(t *testing.T) {
	readKey, readHash, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	writeKey, writeHash, _ := GenerateKey()
	oldKey, oldHash, _ := GenerateKey()
	expired := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	store := NewKeyStore([]APIKey{
		{Name: "reader", Hash: readHash, Scopes: []string{ScopeRead}},
		{Name: "writer", Hash: strings.ToUpper(writeHash), Scopes: []string{ScopeWrite}},
		{Name: "old", Hash: oldHash, Scopes: []string{ScopeAll}, ExpiresAt: &expired},
	})
	store.now = func() time.Time { return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC) }

	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}

	tests := []struct {
		name  string
		key   string
		scope string
		want  error
	}{
		{"读权限", readKey, ScopeRead, nil},
		{"读密钥写入", readKey, ScopeWrite, ErrInsufficientScope},
		{"写密钥读取", writeKey, ScopeRead, nil},
		{"过期", oldKey, ScopeRead, ErrExpiredAPIKey},
		{"未知密钥", "sp_unknown", ScopeRead, ErrInvalidAPIKey},
		{"缺少密钥", "", ScopeRead, ErrMissingAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Authenticate(tt.key, tt.scope)
			if err != tt.want {
				t.Errorf("Authenticate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateKey(t *testing.T) {
	key, hash, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if !strings.HasPrefix(key, "sp_") {
		t.Errorf("key %q missing prefix", key)
	}
	if len(hash) != 64 || HashKey(key) != hash {
		t.Errorf("hash mismatch: %s", hash)
	}

	other, _, _ := GenerateKey()
	if other == key {
		t.Error("keys should be random")
	}
}

func TestExtractAPIKey(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if got := ExtractAPIKey(r); got != "abc" {
		t.Errorf("bearer: got %q", got)
	}

	r = httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-API-Key", "xyz")
	if got := ExtractAPIKey(r); got != "xyz" {
		t.Errorf("header: got %q", got)
	}

	r = httptest.NewRequest("GET", "/?api_key=q", nil)
	if got := ExtractAPIKey(r); got != "" {
		t.Errorf("query parameter should be ignored, got %q", got)
	}
}

func TestRequiredScope(t *testing.T) {
	tests := []struct {
		method, target, want string
	}{
		{"GET", "/health", ""},
		{"GET", "/metrics", ""},
		{"OPTIONS", "/api/v1/plan/generate", ""},
		{"POST", "/api/v1/plan/generate", ScopeRead},
		{"GET", "/api/v1/weeks/2026-01-05/runs/latest", ScopeRead},
		{"POST", "/api/v1/weeks/2026-01-05/plan", ScopeWrite},
		{"POST", "/api/v1/weeks/2026-01-05/plan?dry_run=true", ScopeRead},
		{"POST", "/api/v1/stats/coverage", ScopeRead},
		{"GET", "/api/v1/employees", ScopeRead},
		{"POST", "/api/v1/employees", ScopeWrite},
		{"PUT", "/api/v1/weeks/2026-01-05/forecast", ScopeWrite},
		{"DELETE", "/api/v1/weeks/2026-01-05/plan", ScopeWrite},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		if got := RequiredScope(r); got != tt.want {
			t.Errorf("RequiredScope(%s %s) = %q, want %q", tt.method, tt.target, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	key, hash, _ := GenerateKey()
	store := NewKeyStore([]APIKey{{Name: "reader", Hash: hash, Scopes: []string{ScopeRead}}})
	h := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		method string
		target string
		key    string
		want   int
	}{
		{"公开路径", "GET", "/health", "", http.StatusOK},
		{"缺少密钥", "POST", "/api/v1/plan/generate", "", http.StatusUnauthorized},
		{"读取", "POST", "/api/v1/plan/generate", key, http.StatusOK},
		{"权限不足", "POST", "/api/v1/weeks/2026-01-05/plan", key, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}
