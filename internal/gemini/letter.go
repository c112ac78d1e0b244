package gemini

import (
	"context"
	"fmt"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/model"
)

const (
	// FallbackLetter is returned in place of a letter when drafting fails.
	FallbackLetter = "Error generating dispute letter. Please try again."

	noInterview = "No interview conducted"
)

const letterPrompt = `Draft a formal letter disputing charges on a medical bill.

Patient and bill:
%s

Discrepancies found:
%s

Interview assessment:
%s

Requirements:
1. Professional and firm, but polite.
2. Include the patient's name and account number.
3. Name each disputed line item and why it is disputed, such as a duplicate or an inflated price.
4. State the total amount in dispute.
5. Ask for an itemized review and a corrected bill.
6. Mention the patient's rights under the No Surprises Act where relevant.
7. Format it as a plain text email body.

Reply with the letter text only.`

// Drafter writes dispute letters.
type Drafter struct {
	client *Client
}

func NewDrafter(client *Client) *Drafter {
	return &Drafter{client: client}
}

// Draft returns FallbackLetter when the model call fails. The error is
// non-nil only when the model cannot be used at all.
func (d *Drafter) Draft(ctx context.Context, bill model.BillRecord, findings []model.Discrepancy, assessment *model.Assessment) (string, error) {
	if findings == nil {
		findings = []model.Discrepancy{}
	}
	interview := noInterview
	if assessment != nil {
		interview = indentJSON(assessment)
	}
	prompt := fmt.Sprintf(letterPrompt, indentJSON(bill), indentJSON(findings), interview)

	text, err := d.client.generate(ctx, "gemini draft", request{
		Contents:         []content{textContent(string(model.RoleUser), prompt)},
		GenerationConfig: &generationConfig{Temperature: 0.3},
	})
	if err != nil {
		if collab.IsUnavailable(err) {
			return "", err
		}
		d.client.log.Error().Err(err).Msg("letter generation failed")
		return FallbackLetter, nil
	}
	return text, nil
}
