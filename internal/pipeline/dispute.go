package pipeline

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/session"
)

// DisputePackage is what a patient reviews before sending a dispute.
type DisputePackage struct {
	HospitalName    string          `json:"hospital_name"`
	HospitalAddress string          `json:"hospital_address"`
	HospitalEmail   string          `json:"hospital_email"`
	HospitalPhone   string          `json:"hospital_phone"`
	DraftLetter     string          `json:"draft_letter"`
	Issues          []model.Issue   `json:"issues"`
	TotalSavings    decimal.Decimal `json:"total_savings"`
}

// DisputePreview composes a dispute package from the session's current
// bill, findings and assessment. It does not modify the session. The
// hospital lookup and the letter draft run concurrently.
func (p *Pipeline) DisputePreview(ctx context.Context, id string) (*DisputePackage, error) {
	s, err := p.store.Get(id)
	if err != nil {
		return nil, err
	}

	var (
		info   collab.HospitalInfo
		letter string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info = p.hospitals.Lookup(gctx, s.Bill.ProviderName)
		return nil
	})
	g.Go(func() error {
		var err error
		letter, err = p.drafter.Draft(gctx, s.Bill, s.Discrepancies, s.FinalAssessment)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, &StageError{Stage: StageDispute, Err: err}
	}

	return &DisputePackage{
		HospitalName:    info.HospitalName,
		HospitalAddress: info.Address,
		HospitalEmail:   info.BillingEmail,
		HospitalPhone:   info.BillingPhone,
		DraftLetter:     letter,
		Issues:          model.Issues(s.Discrepancies),
		TotalSavings:    model.TotalOvercharge(s.Discrepancies),
	}, nil
}

// SendDispute emails letter to the recipient, referencing the session's
// account number. Session state is not modified either way.
func (p *Pipeline) SendDispute(ctx context.Context, id, to, letter string) (collab.Receipt, error) {
	s, err := p.store.Get(id)
	if err != nil {
		return collab.Receipt{}, err
	}
	receipt, err := p.email.Send(ctx, to, letter, s.Bill.Account())
	if err != nil {
		return collab.Receipt{}, &StageError{Stage: StageSend, Err: err}
	}
	p.log.Info().Str("session", id).Str("receipt", receipt.ID).Msg("dispute sent")
	return receipt, nil
}

// IsNotFound reports whether err refers to an unknown session.
func IsNotFound(err error) bool {
	return errors.Is(err, session.ErrNotFound)
}
