// Package collab defines the contracts between the analysis pipeline and
// the external services it depends on: document extraction, the interview
// model, hospital lookup, letter drafting and email delivery.
package collab

import (
	"context"

	"github.com/gyeh/medbill/internal/model"
)

// Extractor turns an uploaded bill document into a BillRecord.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*model.BillRecord, error)
}

// Turn is everything the interviewer sees for one exchange. Message is
// empty for the opening turn.
type Turn struct {
	Bill          model.BillRecord
	Discrepancies []model.Discrepancy
	History       []model.ChatMessage
	Message       string
}

// Conversation produces the interviewer's next message. The reply may embed
// a fenced JSON assessment block.
type Conversation interface {
	Reply(ctx context.Context, turn Turn) (string, error)
}

// HospitalInfo is the best-known contact record for a provider. Any field
// may be empty.
type HospitalInfo struct {
	HospitalName string `json:"hospital_name"`
	Address      string `json:"address"`
	BillingEmail string `json:"billing_email"`
	BillingPhone string `json:"billing_phone"`
}

// HospitalLookup never fails; on internal errors it returns what it has.
type HospitalLookup interface {
	Lookup(ctx context.Context, providerName *string) HospitalInfo
}

// LetterDrafter writes a dispute letter. Drafting failures come back as a
// fixed fallback text; only an unusable drafter returns an error.
type LetterDrafter interface {
	Draft(ctx context.Context, bill model.BillRecord, findings []model.Discrepancy, assessment *model.Assessment) (string, error)
}

// Receipt identifies a delivered message.
type Receipt struct {
	ID string `json:"id"`
}

// EmailSender delivers a dispute letter.
type EmailSender interface {
	Send(ctx context.Context, to, letter, account string) (Receipt, error)
}

// Capabilities reports which collaborators are usable in this process.
type Capabilities struct {
	Extraction   bool     `json:"extraction"`
	Conversation bool     `json:"conversation"`
	Drafting     bool     `json:"drafting"`
	Email        bool     `json:"email"`
	PriceCache   bool     `json:"price_cache"`
	PriceSources []string `json:"price_sources"`
}

// Unavailable stands in for any collaborator that was not configured.
// Every call fails with KindUnavailable.
type Unavailable struct {
	Service string
}

func (u Unavailable) err(op string) error {
	return &Error{Op: u.Service + " " + op, Kind: KindUnavailable, Err: ErrNotConfigured}
}

func (u Unavailable) Extract(context.Context, []byte, string) (*model.BillRecord, error) {
	return nil, u.err("extract")
}

func (u Unavailable) Reply(context.Context, Turn) (string, error) {
	return "", u.err("reply")
}

func (u Unavailable) Draft(context.Context, model.BillRecord, []model.Discrepancy, *model.Assessment) (string, error) {
	return "", u.err("draft")
}

func (u Unavailable) Send(context.Context, string, string, string) (Receipt, error) {
	return Receipt{}, u.err("send")
}
