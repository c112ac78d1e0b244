package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/model"
)

const (
	openingMessage = "Hello, I'd like to review my medical bill."

	// Sent in place of a filtered reply so the interview can continue.
	blockedFallback = "Hello! I'm here to help you review your medical bill. " +
		"I've analyzed your bill and found some items that may need your attention. " +
		"Could you tell me about your hospital visit? For example, how long were you there, " +
		"and what procedures or treatments do you remember receiving?"
)

const interviewPrompt = `You are a patient-friendly medical billing assistant helping someone check their bill for errors.

You have the extracted bill and the list of automatically detected discrepancies below. In this conversation:
1. Introduce yourself briefly and explain that you will help review the bill.
2. Ask short, specific questions about the visit that can confirm or rule out charges.
3. Stick to facts a patient would know: how long they stayed, procedures they remember, medications and tests.
4. Use plain language. The patient is not a medical professional.
5. Ask no more than 6 to 8 questions in total, then summarize what you found.

Treat answers as supporting evidence rather than proof. "I don't remember" is an acceptable answer; move on.
Be more confident when answers are specific and certain, and be kind, since bills are stressful.

Once you have enough information, include your assessment as a fenced block:
` + "```json" + `
{
  "assessment_complete": true,
  "confirmed_discrepancies": [...],
  "new_concerns": [...],
  "cleared_items": [...]
}
` + "```" + `

Until then, just ask the next question.

BILL DATA:
%s

AUTO-DETECTED DISCREPANCIES:
%s
`

// Conversation runs the bill review interview.
type Conversation struct {
	client *Client
}

func NewConversation(client *Client) *Conversation {
	return &Conversation{client: client}
}

func (c *Conversation) Reply(ctx context.Context, turn collab.Turn) (string, error) {
	const op = "gemini reply"

	findings := turn.Discrepancies
	if findings == nil {
		findings = []model.Discrepancy{}
	}
	system := fmt.Sprintf(interviewPrompt, indentJSON(turn.Bill), indentJSON(findings))

	contents := make([]content, 0, len(turn.History)+1)
	for _, msg := range turn.History {
		contents = append(contents, textContent(string(msg.Role), msg.Content))
	}
	if turn.Message != "" {
		contents = append(contents, textContent(string(model.RoleUser), turn.Message))
	}
	if len(contents) == 0 {
		contents = append(contents, textContent(string(model.RoleUser), openingMessage))
	}

	text, err := c.client.generate(ctx, op, request{
		SystemInstruction: &content{Parts: []part{{Text: system}}},
		Contents:          contents,
		GenerationConfig:  &generationConfig{Temperature: 0.7},
	})
	if errors.Is(err, ErrBlocked) {
		c.client.log.Warn().Err(err).Msg("interview reply blocked, using fallback question")
		return blockedFallback, nil
	}
	if err != nil {
		return "", err
	}
	return text, nil
}
