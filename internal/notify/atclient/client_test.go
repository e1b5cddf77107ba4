package atclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func okBody() string {
	return `{"SMSMessageData":{"Message":"Sent to 1/1 Total Cost: KES 0.8","Recipients":[{"number":"+254722111222","status":"Success","statusCode":101,"cost":"KES 0.8","messageId":"ATXid_1"}]}}`
}

func newTestClient(t *testing.T, srv *httptest.Server, retries int) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Username:   "sandbox",
		From:       "AFYABOOK",
		MaxRetries: retries,
		Backoff:    time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestSendSuccess(t *testing.T) {
	var gotAuth, gotUser, gotTo, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("apiKey")
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		gotUser = r.PostFormValue("username")
		gotTo = r.PostFormValue("to")
		gotFrom = r.PostFormValue("from")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody()))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	recipient, err := c.Send(context.Background(), "+254722111222", "Appointment confirmed")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if recipient.StatusCode != 101 || recipient.MessageID != "ATXid_1" {
		t.Fatalf("unexpected recipient: %+v", recipient)
	}
	if gotAuth != "test-key" || gotUser != "sandbox" || gotTo != "+254722111222" || gotFrom != "AFYABOOK" {
		t.Fatalf("unexpected request fields: %q %q %q %q", gotAuth, gotUser, gotTo, gotFrom)
	}
}

func TestSendRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(okBody()))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)
	if _, err := c.Send(context.Background(), "+254722111222", "hello"); err != nil {
		t.Fatalf("Send failed after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid credentials"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)
	if _, err := c.Send(context.Background(), "+254722111222", "hello"); err == nil {
		t.Fatal("expected error on 401")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls.Load())
	}
}

func TestSendRejectedRecipient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 0/1","Recipients":[{"number":"+254722111222","status":"UserInBlacklist","statusCode":406}]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	recipient, err := c.Send(context.Background(), "+254722111222", "hello")
	if err == nil {
		t.Fatal("expected error on rejected recipient")
	}
	if recipient == nil || recipient.StatusCode != 406 {
		t.Fatalf("expected rejected recipient detail, got %+v", recipient)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Username: "sandbox"}); err == nil {
		t.Fatal("expected missing API key error")
	}
	if _, err := New(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected missing username error")
	}
}
