// Package gemini implements the extraction, interview and letter drafting
// collaborators on top of the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/logging"
)

// ErrBlocked is returned when the model refuses to answer, either because
// the prompt was filtered or the candidate stopped for a safety reason.
var ErrBlocked = errors.New("gemini response blocked")

// Client calls the Generative Language API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        zerolog.Logger
}

type request struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewClient(apiKey, baseURL, model string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logging.Component(log, "gemini"),
	}
}

func textContent(role, text string) content {
	return content{Role: role, Parts: []part{{Text: text}}}
}

func documentPart(data []byte, mimeType string) part {
	return part{InlineData: &inlineData{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

// generate sends req and returns the concatenated text of the first
// candidate. Failures are *collab.Error values tagged with op.
func (c *Client) generate(ctx context.Context, op string, req request) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", &collab.Error{Op: op, Kind: collab.KindUnavailable, Err: collab.ErrNotConfigured}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", &collab.Error{Op: op, Kind: collab.KindFailed, Err: err}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &collab.Error{Op: op, Kind: collab.KindFailed, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", collab.Classify(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", collab.Classify(op, err)
	}
	c.log.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("generateContent")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		var apiErr response
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
			msg = apiErr.Error.Message
		}
		return "", &collab.Error{
			Op:   op,
			Kind: collab.KindForStatus(resp.StatusCode),
			Err:  fmt.Errorf("gemini api error (%d): %s", resp.StatusCode, msg),
		}
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &collab.Error{Op: op, Kind: collab.KindFailed, Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(parsed.Candidates) == 0 {
		reason := "no candidates"
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			reason = parsed.PromptFeedback.BlockReason
		}
		return "", &collab.Error{Op: op, Kind: collab.KindRejected, Err: fmt.Errorf("%w: %s", ErrBlocked, reason)}
	}

	cand := parsed.Candidates[0]
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()
	if strings.TrimSpace(text) == "" {
		if cand.FinishReason != "" && cand.FinishReason != "STOP" {
			return "", &collab.Error{Op: op, Kind: collab.KindRejected, Err: fmt.Errorf("%w: finish reason %s", ErrBlocked, cand.FinishReason)}
		}
		return "", &collab.Error{Op: op, Kind: collab.KindFailed, Err: errors.New("gemini response missing content")}
	}
	return text, nil
}

// extractJSON strips an optional code fence and returns the outermost
// JSON object in input, or "" when there is none.
func extractJSON(input string) string {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return ""
	}
	return trimmed[start : end+1]
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(b)
}
