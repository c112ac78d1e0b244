// Package email delivers dispute letters through the Resend HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/logging"
)

const op = "resend send"

// Sender posts letters to Resend's /emails endpoint.
type Sender struct {
	apiKey     string
	baseURL    string
	from       string
	httpClient *http.Client
	log        zerolog.Logger
}

type message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html"`
}

type apiResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func NewSender(apiKey, baseURL, from string, timeout time.Duration, log zerolog.Logger) *Sender {
	return &Sender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logging.Component(log, "email"),
	}
}

// Subject is the subject line used for a dispute about account.
func Subject(account string) string {
	if strings.TrimSpace(account) == "" {
		account = "Unknown"
	}
	return "Formal Billing Dispute - Account #" + account
}

// HTMLBody wraps the plain-text letter so it renders with its line breaks.
func HTMLBody(letter string) string {
	return "<div style='font-family: sans-serif; white-space: pre-wrap;'>" + html.EscapeString(letter) + "</div>"
}

func (s *Sender) Send(ctx context.Context, to, letter, account string) (collab.Receipt, error) {
	if strings.TrimSpace(s.apiKey) == "" {
		return collab.Receipt{}, &collab.Error{Op: op, Kind: collab.KindUnavailable, Err: collab.ErrNotConfigured}
	}

	payload, err := json.Marshal(message{
		From:    s.from,
		To:      []string{to},
		Subject: Subject(account),
		Text:    letter,
		HTML:    HTMLBody(letter),
	})
	if err != nil {
		return collab.Receipt{}, &collab.Error{Op: op, Kind: collab.KindFailed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return collab.Receipt{}, &collab.Error{Op: op, Kind: collab.KindFailed, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return collab.Receipt{}, collab.Classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return collab.Receipt{}, collab.Classify(op, err)
	}

	var parsed apiResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && parsed.Message != "" {
			msg = parsed.Message
		}
		s.log.Warn().Int("status", resp.StatusCode).Str("error", msg).Msg("send failed")
		return collab.Receipt{}, &collab.Error{
			Op:   op,
			Kind: collab.KindForStatus(resp.StatusCode),
			Err:  fmt.Errorf("resend api error (%d): %s", resp.StatusCode, msg),
		}
	}
	if decodeErr != nil {
		return collab.Receipt{}, &collab.Error{Op: op, Kind: collab.KindFailed, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	if parsed.ID == "" {
		return collab.Receipt{}, &collab.Error{Op: op, Kind: collab.KindFailed, Err: errors.New("response missing id")}
	}

	s.log.Info().Str("id", parsed.ID).Msg("dispute email sent")
	return collab.Receipt{ID: parsed.ID}, nil
}
