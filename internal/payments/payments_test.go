package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractPaymentLinkPriority(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		want    string
		wantErr bool
	}{
		{"payment_link wins", map[string]any{"payment_link": "a", "checkout_url": "b", "url": "c"}, "a", false},
		{"checkout_url next", map[string]any{"checkout_url": "b", "url": "c"}, "b", false},
		{"url last", map[string]any{"url": "c"}, "c", false},
		{"empty string skipped", map[string]any{"payment_link": "", "url": "c"}, "c", false},
		{"non-string skipped", map[string]any{"payment_link": 42, "url": "c"}, "c", false},
		{"none present", map[string]any{"id": "x"}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractPaymentLink(tc.payload)
			if tc.wantErr {
				if !errors.Is(err, ErrNoPaymentLink) {
					t.Fatalf("expected ErrNoPaymentLink, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %q, %v; want %q", got, err, tc.want)
			}
		})
	}
}

func TestCheckoutRequiresKey(t *testing.T) {
	c := NewClient("", "")
	_, err := c.Checkout(context.Background(), CheckoutRequest{ProductID: "p1"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCheckoutReturnsLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkouts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer pay-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"checkout_url":"https://pay.example/c/123"}`))
	}))
	defer srv.Close()

	c := NewClient("pay-key", srv.URL)
	link, err := c.Checkout(context.Background(), CheckoutRequest{ProductID: "p1"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if link != "https://pay.example/c/123" {
		t.Fatalf("unexpected link %q", link)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"payment.succeeded"}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	if !VerifySignature("whsec", body, sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifySignature("whsec", body, "deadbeef") {
		t.Fatal("bad signature accepted")
	}
	if VerifySignature("", body, sig) {
		t.Fatal("empty secret accepted")
	}
	if VerifySignature("whsec", []byte(`{"type":"tampered"}`), sig) {
		t.Fatal("tampered body accepted")
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"subscription.active","data":{"subscription_id":"sub_1"}}`))
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Type != "subscription.active" || ev.Data["subscription_id"] != "sub_1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if _, err := ParseEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}
