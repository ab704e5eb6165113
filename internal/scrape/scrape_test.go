package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const page = `<!DOCTYPE html>
<html><head><title>Return policy</title></head>
<body><article><h1>Return policy</h1>
<p>Items may be returned within thirty days of delivery for a full refund.
Original packaging is required and return shipping is free for defective items.</p>
<p>Refunds are issued to the original payment method within five business days
of the warehouse receiving the returned item.</p>
</article></body></html>`

func TestExecExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 0, "voiceline-test")
	res, err := f.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if res.Status != 200 {
		t.Fatalf("status %d", res.Status)
	}
	if !strings.Contains(res.Text, "thirty days") {
		t.Fatalf("text not extracted: %q", res.Text)
	}
}

func TestExecRejectsBadURL(t *testing.T) {
	f := NewFetcher(time.Second, 0, "")
	if _, err := f.Exec(context.Background(), "ftp://example.com"); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
	if _, err := f.Exec(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank url")
	}
}

func TestExecTruncatesToMaxChars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 40, "")
	res, err := f.Exec(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(res.Text) > 40 {
		t.Fatalf("text not truncated: %d chars", len(res.Text))
	}
}

func TestExecReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 0, "")
	res, err := f.Exec(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if res.Status != 404 {
		t.Fatalf("status %d", res.Status)
	}
}
