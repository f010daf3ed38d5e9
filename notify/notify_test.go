package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []Envelope
}

func (r *recordingSender) Send(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("transient failure")
	}
	r.sent = append(r.sent, env)
	return nil
}

func TestDispatcherSendsBothChannels(t *testing.T) {
	email, sms := &recordingSender{}, &recordingSender{}
	d := NewDispatcher(DispatcherOptions{Email: email, SMS: sms, Backoff: time.Millisecond})

	ok := d.Notify(context.Background(), Message{
		Kind:         KindApproved,
		TrackingCode: "GCX-2025-123456",
		BusinessName: "Asante Agro",
		Email:        "owner@asante.example",
		Telephone:    "+233241234567",
		Context: map[string]string{
			"username":           "owner@asante.example",
			"temporary_password": "Tmp!pass1234",
		},
	})
	if !ok {
		t.Fatal("Notify reported no attempt")
	}
	if len(email.sent) != 1 || len(sms.sent) != 1 {
		t.Fatalf("email sent %d, sms sent %d", len(email.sent), len(sms.sent))
	}
	if !strings.Contains(email.sent[0].Body, "Temporary password: Tmp!pass1234") {
		t.Errorf("email body missing credentials:\n%s", email.sent[0].Body)
	}
	if email.sent[0].Subject != "GCX Supplier Application Approved - GCX-2025-123456" {
		t.Errorf("subject = %q", email.sent[0].Subject)
	}
	if sms.sent[0].To != "0241234567" {
		t.Errorf("sms to = %q, want local format", sms.sent[0].To)
	}
}

func TestDispatcherRetries(t *testing.T) {
	email := &recordingSender{failures: 2}
	d := NewDispatcher(DispatcherOptions{Email: email, Retries: 2, Backoff: time.Millisecond})
	d.Notify(context.Background(), Message{Kind: KindSubmitted, TrackingCode: "GCX-2025-1", Email: "a@b.example"})
	if email.calls != 3 || len(email.sent) != 1 {
		t.Fatalf("calls = %d, sent = %d", email.calls, len(email.sent))
	}
}

func TestDispatcherSwallowsPermanentFailure(t *testing.T) {
	email := &recordingSender{failures: 100}
	d := NewDispatcher(DispatcherOptions{Email: email, Retries: 1, Backoff: time.Millisecond})
	if !d.Notify(context.Background(), Message{Kind: KindRejected, Email: "a@b.example"}) {
		t.Fatal("delivery should still count as attempted")
	}
	if email.calls != 2 {
		t.Fatalf("calls = %d, want 2", email.calls)
	}
}

func TestDispatcherNoRecipients(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{Email: &recordingSender{}, SMS: &recordingSender{}})
	if d.Notify(context.Background(), Message{Kind: KindSubmitted}) {
		t.Fatal("no recipient should mean no attempt")
	}
	if d.Notify(context.Background(), Message{Kind: "unknown", Email: "a@b.example"}) {
		t.Fatal("unknown kind should not be attempted")
	}
}

func TestTemplatesRenderEveryKind(t *testing.T) {
	for kind := range templates {
		out, err := render(Message{Kind: kind, TrackingCode: "GCX-2025-000001", BusinessName: "Biz"})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if !strings.Contains(out.Subject, "GCX-2025-000001") {
			t.Errorf("%s subject %q lacks tracking code", kind, out.Subject)
		}
		if strings.Contains(out.Email, "<no value>") {
			t.Errorf("%s email renders missing keys:\n%s", kind, out.Email)
		}
	}
}

func TestSMSGatewaySender(t *testing.T) {
	var got smsPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := SMSGatewaySender{URL: srv.URL, APIKey: "key", SenderID: "GCX"}
	if err := s.Send(context.Background(), Envelope{To: "0241234567", Body: "hello"}); err != nil {
		t.Fatal(err)
	}
	if got.To != "0241234567" || got.From != "GCX" || got.Message != "hello" {
		t.Errorf("payload = %+v", got)
	}

	bad := SMSGatewaySender{URL: srv.URL}
	if err := bad.Send(context.Background(), Envelope{To: "0241234567", Body: "hello"}); err == nil {
		t.Fatal("expected error on 401")
	}
}
