package handler

// EnrollParticipantRequest represents a request to enroll a new participant
type EnrollParticipantRequest struct {
	ReferralCode string `json:"referral_code" binding:"required,min=4,max=32"`
	SponsorCode  string `json:"sponsor_code,omitempty"`
}

// ParticipantResponse represents a participant in API responses
type ParticipantResponse struct {
	ID             string `json:"id"`
	ReferralCode   string `json:"referral_code"`
	SponsorID      string `json:"sponsor_id,omitempty"`
	BinaryParentID string `json:"binary_parent_id,omitempty"`
	BinaryPosition string `json:"binary_position"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// TeamResponse represents a participant's binary leg counters
type TeamResponse struct {
	LeftCount     int    `json:"left_count"`
	RightCount    int    `json:"right_count"`
	LeftBusiness  string `json:"left_business"`
	RightBusiness string `json:"right_business"`
	CarryLeft     string `json:"carry_left"`
	CarryRight    string `json:"carry_right"`
	TotalPairs    int    `json:"total_pairs"`
}

// TreeResponse represents a participant with its direct binary children
type TreeResponse struct {
	Participant ParticipantResponse  `json:"participant"`
	Team        TeamResponse         `json:"team"`
	LeftChild   *ParticipantResponse `json:"left_child,omitempty"`
	RightChild  *ParticipantResponse `json:"right_child,omitempty"`
}

// UplineEntryResponse represents one ancestor in the frozen sponsor chain
type UplineEntryResponse struct {
	ParticipantID string `json:"participant_id"`
	Level         int    `json:"level"`
}

// CreateInvestmentRequest represents a request to create a new investment
type CreateInvestmentRequest struct {
	ParticipantID  string `json:"participant_id" binding:"required,uuid"`
	Amount         string `json:"amount" binding:"required"`
	Frequency      string `json:"frequency,omitempty" binding:"omitempty,oneof=daily weekly monthly"`
	DurationMonths int    `json:"duration_months,omitempty" binding:"omitempty,min=1,max=120"`
}

// InvestmentResponse represents an investment in API responses
type InvestmentResponse struct {
	ID             string `json:"id"`
	ParticipantID  string `json:"participant_id"`
	Amount         string `json:"amount"`
	DailyRate      string `json:"daily_rate"`
	TotalCap       string `json:"total_cap"`
	TotalPaid      string `json:"total_paid"`
	DaysCompleted  int    `json:"days_completed"`
	Frequency      string `json:"frequency"`
	NextPayoutDate string `json:"next_payout_date"`
	MaturityDate   string `json:"maturity_date"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// WalletResponse represents a participant's named balances in API responses
type WalletResponse struct {
	ParticipantID   string `json:"participant_id"`
	MainBalance     string `json:"main_balance"`
	ROIBalance      string `json:"roi_balance"`
	ReferralBalance string `json:"referral_balance"`
	LevelBalance    string `json:"level_balance"`
	BinaryBalance   string `json:"binary_balance"`
	HoldBalance     string `json:"hold_balance"`
	TotalEarnings   string `json:"total_earnings"`
	TotalInvested   string `json:"total_invested"`
	UpdatedAt       string `json:"updated_at"`
}

// LedgerEntryResponse represents one immutable balance mutation in API responses
type LedgerEntryResponse struct {
	ID            string `json:"id"`
	Wallet        string `json:"wallet"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	Reason        string `json:"reason"`
	SourceRef     string `json:"source_ref"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}

// CommissionResponse represents a commission claim in API responses
type CommissionResponse struct {
	ID                  string `json:"id"`
	RecipientID         string `json:"recipient_id"`
	SourceParticipantID string `json:"source_participant_id"`
	Type                string `json:"type"`
	Level               int    `json:"level"`
	Amount              string `json:"amount"`
	Percentage          string `json:"percentage"`
	SourceAmount        string `json:"source_amount"`
	Status              string `json:"status"`
	RejectionReason     string `json:"rejection_reason,omitempty"`
	LedgerRef           string `json:"ledger_ref,omitempty"`
	CreatedAt           string `json:"created_at"`
	PaidAt              string `json:"paid_at,omitempty"`
}

// ChainVerificationResponse represents the outcome of an audit chain walk
type ChainVerificationResponse struct {
	Intact        bool   `json:"intact"`
	EventsChecked int    `json:"events_checked"`
	BreakSequence int64  `json:"break_sequence,omitempty"`
	BreakEventID  string `json:"break_event_id,omitempty"`
	BreakReason   string `json:"break_reason,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
