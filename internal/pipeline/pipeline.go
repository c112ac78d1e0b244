// Package pipeline sequences a bill through its analysis stages: upload and
// enrichment, confirmation and detection, the interview, and the dispute.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/detect"
	"github.com/gyeh/medbill/internal/hospital"
	"github.com/gyeh/medbill/internal/logging"
	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/session"
)

// Stage names for StageError.
const (
	StageExtract = "extract"
	StageConfirm = "confirm"
	StageChat    = "chat"
	StageDispute = "dispute"
	StageSend    = "send"
)

// ErrInvalidBill wraps validation failures of a submitted bill.
var ErrInvalidBill = errors.New("invalid bill")

// StageError records which stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators a Pipeline is built from. Nil collaborators
// are replaced with stand-ins that report themselves unavailable.
type Deps struct {
	Store        *session.Store
	Prices       detect.PriceLookup
	Extractor    collab.Extractor
	Conversation collab.Conversation
	Hospitals    collab.HospitalLookup
	Drafter      collab.LetterDrafter
	Email        collab.EmailSender

	// EnrichWorkers bounds concurrent price lookups per bill. Zero means 8.
	EnrichWorkers int
}

type Pipeline struct {
	store        *session.Store
	prices       detect.PriceLookup
	engine       *detect.Engine
	extractor    collab.Extractor
	conversation collab.Conversation
	hospitals    collab.HospitalLookup
	drafter      collab.LetterDrafter
	email        collab.EmailSender
	workers      int
	log          zerolog.Logger
}

func New(d Deps, log zerolog.Logger) *Pipeline {
	p := &Pipeline{
		store:        d.Store,
		prices:       d.Prices,
		engine:       detect.NewEngine(d.Prices),
		extractor:    d.Extractor,
		conversation: d.Conversation,
		hospitals:    d.Hospitals,
		drafter:      d.Drafter,
		email:        d.Email,
		workers:      d.EnrichWorkers,
		log:          logging.Component(log, "pipeline"),
	}
	if p.store == nil {
		p.store = session.NewStore()
	}
	if p.extractor == nil {
		p.extractor = collab.Unavailable{Service: "extraction"}
	}
	if p.conversation == nil {
		p.conversation = collab.Unavailable{Service: "conversation"}
	}
	if p.hospitals == nil {
		p.hospitals = hospital.NewDirectory(log)
	}
	if p.drafter == nil {
		p.drafter = collab.Unavailable{Service: "drafting"}
	}
	if p.email == nil {
		p.email = collab.Unavailable{Service: "email"}
	}
	if p.workers <= 0 {
		p.workers = 8
	}
	return p
}

// Upload extracts a bill from a document and opens a session for it.
func (p *Pipeline) Upload(ctx context.Context, data []byte, mimeType string) (*session.Session, error) {
	bill, err := p.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	return p.Ingest(ctx, *bill), nil
}

// Ingest opens a session for an already structured bill. Line items are
// enriched with reference prices; findings stay empty until confirmation.
func (p *Pipeline) Ingest(ctx context.Context, bill model.BillRecord) *session.Session {
	bill = bill.Clone()
	bill.Normalize()
	p.Enrich(ctx, &bill)

	sess := p.store.Create(bill)
	p.log.Info().
		Str("session", sess.ID).
		Int("line_items", len(bill.LineItems)).
		Msg("session created")
	return sess
}

// Confirm replaces the session's bill with the submitted version and
// recomputes findings from scratch. Confirming again discards the previous
// findings entirely.
func (p *Pipeline) Confirm(ctx context.Context, id string, bill model.BillRecord) (*session.Session, error) {
	if _, err := p.store.Get(id); err != nil {
		return nil, err
	}

	bill = bill.Clone()
	bill.Normalize()
	if err := bill.Validate(); err != nil {
		return nil, &StageError{Stage: StageConfirm, Err: fmt.Errorf("%w: %w", ErrInvalidBill, err)}
	}
	if bill.LineItems == nil {
		bill.LineItems = []model.LineItem{}
	}
	p.Enrich(ctx, &bill)
	findings := p.engine.Detect(ctx, &bill)

	sess, err := p.store.Update(ctx, id, func(s *session.Session) error {
		s.Bill = bill
		s.Discrepancies = findings
		s.Stage = session.StageConfirmed
		return nil
	})
	if err != nil {
		return nil, &StageError{Stage: StageConfirm, Err: err}
	}

	p.log.Info().
		Str("session", id).
		Int("findings", len(findings)).
		Str("total_savings", model.TotalOvercharge(findings).StringFixed(2)).
		Msg("bill confirmed")
	return sess, nil
}

// Reply is one interviewer message. Assessment is set when the message
// carried a complete assessment.
type Reply struct {
	Message    string            `json:"message"`
	Assessment *model.Assessment `json:"assessment"`
}

// Chat runs one interview turn. An empty message starts the interview
// without recording a user entry. The session is locked for the whole turn
// and is left untouched if the interviewer fails.
func (p *Pipeline) Chat(ctx context.Context, id, message string) (*Reply, error) {
	message = strings.TrimSpace(message)

	var reply Reply
	_, err := p.store.Update(ctx, id, func(s *session.Session) error {
		text, err := p.conversation.Reply(ctx, collab.Turn{
			Bill:          s.Bill,
			Discrepancies: s.Discrepancies,
			History:       s.ChatHistory,
			Message:       message,
		})
		if err != nil {
			return err
		}

		if message != "" {
			s.ChatHistory = append(s.ChatHistory, model.ChatMessage{Role: model.RoleUser, Content: message})
		}
		s.ChatHistory = append(s.ChatHistory, model.ChatMessage{Role: model.RoleModel, Content: text})
		s.Stage = session.StageInterviewing

		reply.Message = text
		if a := ParseAssessment(text); a != nil {
			s.FinalAssessment = a
			reply.Assessment = a
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, err
		}
		return nil, &StageError{Stage: StageChat, Err: err}
	}
	if reply.Assessment != nil {
		p.log.Info().Str("session", id).Msg("interview assessment complete")
	}
	return &reply, nil
}

// StartChat seeds the interview with the interviewer's opening message.
func (p *Pipeline) StartChat(ctx context.Context, id string) (*Reply, error) {
	return p.Chat(ctx, id, "")
}

// Results is a read-only view of a session.
type Results struct {
	Bill                  model.BillRecord    `json:"bill_data"`
	Discrepancies         []model.Discrepancy `json:"discrepancies"`
	Assessment            *model.Assessment   `json:"assessment"`
	TotalPotentialSavings decimal.Decimal     `json:"total_potential_savings"`
	ChatHistory           []model.ChatMessage `json:"chat_history"`
	Stage                 session.Stage       `json:"stage"`
}

func (p *Pipeline) Results(id string) (*Results, error) {
	s, err := p.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &Results{
		Bill:                  s.Bill,
		Discrepancies:         s.Discrepancies,
		Assessment:            s.FinalAssessment,
		TotalPotentialSavings: model.TotalOvercharge(s.Discrepancies),
		ChatHistory:           s.ChatHistory,
		Stage:                 s.Stage,
	}, nil
}

// Session returns a copy of the session.
func (p *Pipeline) Session(id string) (*session.Session, error) {
	return p.store.Get(id)
}
