package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/model"
)

const extractionPrompt = `You extract structured data from medical bills. Read the attached bill and return every line item as JSON.

Line item fields:
- code: the CPT or HCPCS code when printed, otherwise null
- description: the service, supply or procedure as written
- quantity: units billed (integer)
- unit_charge: dollars per unit (number)
- total_charge: dollars for the line (number)
- date_of_service: YYYY-MM-DD when printed, otherwise null
- category: one of "room", "procedure", "lab", "medication", "supply", "imaging", "therapy", "consultation", "other"

Bill fields: patient_name, provider_name, billing_date, account_number (strings or null) and total_billed,
insurance_adjustments, patient_responsibility (numbers or null).

Respond with a single JSON object and nothing else:
{
  "patient_name": "...",
  "provider_name": "...",
  "billing_date": "...",
  "account_number": "...",
  "total_billed": 0.0,
  "insurance_adjustments": 0.0,
  "patient_responsibility": 0.0,
  "line_items": [
    {"code": "...", "description": "...", "quantity": 1, "unit_charge": 0.0, "total_charge": 0.0, "date_of_service": "...", "category": "..."}
  ]
}`

// Extractor reads bill documents with a multimodal model.
type Extractor struct {
	client *Client
}

func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (*model.BillRecord, error) {
	const op = "gemini extract"

	text, err := e.client.generate(ctx, op, request{
		Contents: []content{{
			Role:  "user",
			Parts: []part{documentPart(data, mimeType), {Text: extractionPrompt}},
		}},
		GenerationConfig: &generationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return nil, err
	}

	raw := extractJSON(text)
	if raw == "" {
		return nil, &collab.Error{Op: op, Kind: collab.KindFailed, Err: errors.New("response contained no JSON object")}
	}
	var bill model.BillRecord
	if err := json.Unmarshal([]byte(raw), &bill); err != nil {
		return nil, &collab.Error{Op: op, Kind: collab.KindFailed, Err: fmt.Errorf("decode bill: %w", err)}
	}
	bill.Normalize()
	if bill.LineItems == nil {
		bill.LineItems = []model.LineItem{}
	}
	return &bill, nil
}
