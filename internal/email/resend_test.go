package email

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/collab"
)

const from = "MedBill Analyzer <onboarding@resend.dev>"

func TestSubject(t *testing.T) {
	if got := Subject("A-100"); got != "Formal Billing Dispute - Account #A-100" {
		t.Errorf("Subject = %q", got)
	}
	if got := Subject(" "); got != "Formal Billing Dispute - Account #Unknown" {
		t.Errorf("Subject = %q", got)
	}
}

func TestHTMLBodyEscapes(t *testing.T) {
	got := HTMLBody("Total <$500> & more")
	want := "<div style='font-family: sans-serif; white-space: pre-wrap;'>Total &lt;$500&gt; &amp; more</div>"
	if got != want {
		t.Errorf("HTMLBody = %q, want %q", got, want)
	}
}

func TestSend(t *testing.T) {
	var got message
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, `{"id":"email-123"}`)
	}))
	defer srv.Close()

	s := NewSender("re_key", srv.URL, from, 5*time.Second, zerolog.Nop())
	receipt, err := s.Send(context.Background(), "billing@hospital.test", "Dear Billing,\nPlease review.", "A-100")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if receipt.ID != "email-123" {
		t.Errorf("receipt = %+v", receipt)
	}
	if auth != "Bearer re_key" || path != "/emails" {
		t.Errorf("auth = %q path = %q", auth, path)
	}
	if got.From != from || len(got.To) != 1 || got.To[0] != "billing@hospital.test" {
		t.Errorf("message = %+v", got)
	}
	if got.Subject != "Formal Billing Dispute - Account #A-100" || got.Text != "Dear Billing,\nPlease review." {
		t.Errorf("message = %+v", got)
	}
}

func TestSendErrors(t *testing.T) {
	tests := []struct {
		status int
		want   collab.Kind
	}{
		{http.StatusUnauthorized, collab.KindAuth},
		{http.StatusUnprocessableEntity, collab.KindRejected},
		{http.StatusTooManyRequests, collab.KindRateLimited},
		{http.StatusInternalServerError, collab.KindFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"name":"error","message":"nope"}`)
			}))
			defer srv.Close()

			s := NewSender("re_key", srv.URL, from, 5*time.Second, zerolog.Nop())
			_, err := s.Send(context.Background(), "a@b.test", "letter", "1")
			if got := collab.KindOf(err); got != tt.want {
				t.Errorf("KindOf = %q, want %q (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestSendMissingKey(t *testing.T) {
	s := NewSender("", "http://127.0.0.1:1", from, time.Second, zerolog.Nop())
	_, err := s.Send(context.Background(), "a@b.test", "letter", "1")
	if !collab.IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}
