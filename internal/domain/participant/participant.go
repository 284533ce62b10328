// Package participant holds the identity node of both referral structures:
// the sponsor (upline) chain used for level commissions and the binary
// placement tree used for volume pairing.
package participant

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bkcjanta/roi-project/internal/domain/shared"
)

// MaxUplineLevels caps the sponsor chain snapshot taken at join time.
const MaxUplineLevels = 5

var (
	ErrEmptyReferralCode     = errors.New("referral code cannot be empty")
	ErrDuplicateReferralCode = errors.New("referral code already in use")
	ErrSponsorNotFound       = errors.New("sponsor not found")
)

// UplineEntry is one ancestor in the precomputed sponsor chain.
// Level 1 is the direct sponsor.
type UplineEntry struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Level         int       `json:"level"`
}

// BinaryTeam accumulates per-leg counts and not-yet-paired business volume,
// plus volume carried over from prior pairing cycles on the stronger leg.
type BinaryTeam struct {
	LeftCount     int             `json:"left_count"`
	RightCount    int             `json:"right_count"`
	LeftBusiness  decimal.Decimal `json:"left_business"`
	RightBusiness decimal.Decimal `json:"right_business"`
	CarryLeft     decimal.Decimal `json:"carry_left"`
	CarryRight    decimal.Decimal `json:"carry_right"`
	TotalPairs    int             `json:"total_pairs"`
}

// HasVolume reports whether any current or carried business exists on either leg
func (t BinaryTeam) HasVolume() bool {
	return t.LeftBusiness.Sign() > 0 || t.RightBusiness.Sign() > 0 ||
		t.CarryLeft.Sign() > 0 || t.CarryRight.Sign() > 0
}

// Participant is a member of both referral structures. The upline chain is
// frozen at join time; later sponsor changes do not rewrite existing chains.
type Participant struct {
	ID             uuid.UUID                `json:"id"`
	ReferralCode   string                   `json:"referral_code"`
	SponsorID      uuid.UUID                `json:"sponsor_id"` // uuid.Nil for roots
	UplineChain    []UplineEntry            `json:"upline_chain"`
	BinaryParentID uuid.UUID                `json:"binary_parent_id"` // uuid.Nil for roots
	BinaryPosition shared.Position          `json:"binary_position"`
	BinaryTeam     BinaryTeam               `json:"binary_team"`
	Status         shared.ParticipantStatus `json:"status"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

// New creates a root participant with no sponsor and no binary parent
func New(referralCode string) (*Participant, error) {
	if referralCode == "" {
		return nil, ErrEmptyReferralCode
	}
	now := time.Now()
	return &Participant{
		ID:             uuid.New(),
		ReferralCode:   referralCode,
		BinaryPosition: shared.PositionNone,
		BinaryTeam: BinaryTeam{
			LeftBusiness:  decimal.Zero,
			RightBusiness: decimal.Zero,
			CarryLeft:     decimal.Zero,
			CarryRight:    decimal.Zero,
		},
		Status:    shared.ParticipantActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive reports whether the participant may receive commissions
func (p *Participant) IsActive() bool {
	return p.Status == shared.ParticipantActive
}

// IsRoot reports whether the participant sits at the top of the placement tree
func (p *Participant) IsRoot() bool {
	return p.BinaryParentID == uuid.Nil
}

// Placement is the slot selected for a new participant in the binary tree
type Placement struct {
	ParentID uuid.UUID       `json:"parent_id"`
	Position shared.Position `json:"position"`
}

// TreeIntegrityError signals corrupted or cyclic placement data. Batch callers
// skip the affected item and log it; the error never aborts a whole run.
type TreeIntegrityError struct {
	ParticipantID uuid.UUID
	Reason        string
}

func (e TreeIntegrityError) Error() string {
	return "tree integrity violation for participant " + e.ParticipantID.String() + ": " + e.Reason
}

// Is matches any TreeIntegrityError when the target carries a nil participant ID
func (e TreeIntegrityError) Is(target error) bool {
	t, ok := target.(TreeIntegrityError)
	if !ok {
		return false
	}
	if t.ParticipantID == uuid.Nil {
		return true
	}
	return e.ParticipantID == t.ParticipantID
}

// ErrParticipantNotFound indicates a missing participant
type ErrParticipantNotFound struct {
	ParticipantID uuid.UUID
}

func (e ErrParticipantNotFound) Error() string {
	return "participant not found: " + e.ParticipantID.String()
}

// Is matches any ErrParticipantNotFound when the target carries a nil ID
func (e ErrParticipantNotFound) Is(target error) bool {
	t, ok := target.(ErrParticipantNotFound)
	if !ok {
		return false
	}
	if t.ParticipantID == uuid.Nil {
		return true
	}
	return e.ParticipantID == t.ParticipantID
}
