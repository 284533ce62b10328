package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/audit"
	"github.com/bkcjanta/roi-project/internal/domain/investment"
	"github.com/bkcjanta/roi-project/internal/domain/participant"
	"github.com/bkcjanta/roi-project/internal/domain/schedjob"
	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// TreeView is a participant together with the occupants of its two binary slots
type TreeView struct {
	Participant *participant.Participant
	LeftChild   *participant.Participant // nil when the slot is empty
	RightChild  *participant.Participant
}

// EnrollmentService defines participant join and structure inspection operations
type EnrollmentService interface {
	// Enroll creates a participant under the sponsor identified by sponsorCode,
	// snapshots the upline chain, places the member in the binary tree, and
	// creates the wallet. An empty sponsorCode creates a root participant.
	// Returns ErrSponsorNotFound when the sponsor code resolves to nobody and
	// ErrDuplicateReferralCode when the new code is already taken.
	Enroll(ctx context.Context, referralCode, sponsorCode, correlationID string) (*participant.Participant, error)

	// GetParticipant retrieves a participant by ID
	// Returns ErrParticipantNotFound if the participant doesn't exist
	GetParticipant(ctx context.Context, id uuid.UUID) (*participant.Participant, error)

	// GetTree returns the participant with its direct binary children
	GetTree(ctx context.Context, id uuid.UUID) (*TreeView, error)

	// GetUpline returns the frozen sponsor chain, level 1 first
	GetUpline(ctx context.Context, id uuid.UUID) ([]participant.UplineEntry, error)
}

// InvestmentService defines investment creation and inspection operations
type InvestmentService interface {
	// CreateInvestment locks a principal into the current rate plan, fans out
	// direct and level commissions synchronously, and dispatches the volume
	// event for binary tree propagation. durationMonths of zero applies the
	// default term.
	CreateInvestment(ctx context.Context, participantID uuid.UUID, amount decimal.Decimal, frequency shared.PayoutFrequency, durationMonths int, correlationID string) (*investment.Investment, error)

	// GetInvestmentsByParticipant retrieves a paginated list of a participant's investments
	GetInvestmentsByParticipant(ctx context.Context, participantID uuid.UUID, page, perPage int) ([]*investment.Investment, error)

	// GetDistributions returns the append-only payout log of one investment
	GetDistributions(ctx context.Context, investmentID uuid.UUID) ([]*investment.Distribution, error)
}

// ChainVerification is the outcome of walking the audit trail
type ChainVerification struct {
	EventsChecked int
	Break         *audit.ChainBreak // nil when the chain is intact
}

// AdminService defines operational endpoints for job control and audit verification
type AdminService interface {
	// RunJob triggers a registered distribution job immediately under the
	// normal run-lock. A run already in progress elsewhere is a clean no-op.
	RunJob(ctx context.Context, name string) error

	// ListJobs returns all job coordination records
	ListJobs(ctx context.Context) ([]*schedjob.ScheduledJob, error)

	// ListExecutions returns a job's retained run history, most recent first
	ListExecutions(ctx context.Context, name string) ([]*schedjob.ExecutionRecord, error)

	// VerifyAuditChain recomputes every event hash in sequence order and
	// reports the first divergence found, if any.
	VerifyAuditChain(ctx context.Context) (*ChainVerification, error)
}
