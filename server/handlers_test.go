package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveUserID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/mixer/state", nil)
	r.Header.Set("X-User-ID", "42")
	if got := resolveUserID(r); got != 42 {
		t.Errorf("resolveUserID = %d, want 42", got)
	}

	// 非法或缺失的头回退到默认用户
	r.Header.Set("X-User-ID", "abc")
	if got := resolveUserID(r); got <= 0 {
		t.Errorf("resolveUserID = %d, want fallback to default user", got)
	}
	r.Header.Del("X-User-ID")
	if got := resolveUserID(r); got <= 0 {
		t.Errorf("resolveUserID = %d, want fallback to default user", got)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, http.StatusConflict, "未加载歌曲")

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != "未加载歌曲" {
		t.Errorf("body = %v, want error message", body)
	}
}
