package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	id := GenerateRequestID()
	if len(id) != 8 {
		t.Errorf("GenerateRequestID() length = %d, want 8", len(id))
	}

	// Verify uniqueness
	id2 := GenerateRequestID()
	if id == id2 {
		t.Errorf("GenerateRequestID() generated duplicate IDs: %s", id)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	id := "test1234"

	// Without ID
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("GetRequestID(empty context) = %q, want empty string", got)
	}

	// With ID
	ctx = WithRequestID(ctx, id)
	if got := GetRequestID(ctx); got != id {
		t.Errorf("GetRequestID() = %q, want %q", got, id)
	}
}

func TestGenerateAndRetrieveRoundTrip(t *testing.T) {
	ctx := context.Background()
	id := GenerateRequestID()
	ctx = WithRequestID(ctx, id)

	if got := GetRequestID(ctx); got != id {
		t.Errorf("RoundTrip failed: generated %q, retrieved %q", id, got)
	}
}

func TestRequestIDMiddleware_AssignsID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if len(seen) != 8 {
		t.Errorf("handler saw request ID %q, want 8-char hex", seen)
	}
	if got := rec.Header().Get(HeaderName); got != seen {
		t.Errorf("response header = %q, want %q", got, seen)
	}
}

func TestRequestIDMiddleware_HonoursUpstreamID(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderName, "upstream1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream1" {
		t.Errorf("handler saw request ID %q, want upstream1", seen)
	}
}
