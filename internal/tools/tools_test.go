package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{1, true},
		{0, false},
		{int64(2), true},
		{1.0, true},
		{0.0, false},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"y", true},
		{"1", true},
		{"false", false},
		{"no", false},
		{"0", false},
		{"", false},
		{"garbage", false},
		{nil, false},
		{[]string{"x"}, false},
	}
	for _, tt := range tests {
		if got := Truthy(tt.in); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"0 9 * * 1-5", false},
		{"*/15 * * * *", false},
		{"0 0 1 1 *", false},
		{"* * * *", true},       // four fields
		{"* * * * * *", true},   // six fields
		{"61 * * * *", true},    // out of range
		{"@every 5s", true},     // descriptors not accepted
		{"not a cron", true},
	}
	for _, tt := range tests {
		err := ValidateSchedule(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSchedule(%q) err = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestBraveSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "test-key" {
			t.Errorf("missing subscription token header")
		}
		if got := r.URL.Query().Get("q"); got != "golang" {
			t.Errorf("query = %q, want golang", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"The Go Programming Language","url":"https://go.dev","description":"Build simple, secure, scalable systems"},
			{"title":"Go (programming language)","url":"https://en.wikipedia.org/wiki/Go","description":"Wikipedia"}
		]}}`))
	}))
	defer srv.Close()

	results, err := braveSearch(context.Background(), srv.URL, "test-key", "golang")
	if err != nil {
		t.Fatalf("braveSearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Title != "The Go Programming Language" || results[0].URL != "https://go.dev" {
		t.Errorf("first result = %+v", results[0])
	}
}

func TestBraveSearchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := braveSearch(context.Background(), srv.URL, "k", "q"); err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestBraveImageSearchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"gopher","url":"https://example.com/page","properties":{"url":"https://example.com/gopher.png"}},
			{"title":"no props","url":"https://example.com/fallback","properties":{}}
		]}`))
	}))
	defer srv.Close()

	results, err := braveImageSearch(context.Background(), srv.URL, "k", "gopher")
	if err != nil {
		t.Fatalf("braveImageSearch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].URL != "https://example.com/gopher.png" {
		t.Errorf("image url = %q, want properties url", results[0].URL)
	}
	if results[1].URL != "https://example.com/fallback" {
		t.Errorf("fallback url = %q", results[1].URL)
	}
}

func TestTruncateOutput(t *testing.T) {
	short := "hello"
	if got := truncateOutput(short, 10); got != short {
		t.Errorf("short string modified: %q", got)
	}
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateOutput(string(long), 10)
	if len(got) <= 10 || got[:10] != "aaaaaaaaaa" {
		t.Errorf("truncated = %q", got)
	}
}
