package shared

// Position identifies a slot in the binary placement tree
type Position string

const (
	PositionLeft  Position = "left"
	PositionRight Position = "right"
	PositionNone  Position = "none"
)

// Opposite returns the mirror slot. PositionNone maps to itself.
func (p Position) Opposite() Position {
	switch p {
	case PositionLeft:
		return PositionRight
	case PositionRight:
		return PositionLeft
	}
	return p
}

// WalletName identifies one of the named balances held by a participant's wallet
type WalletName string

const (
	WalletMain     WalletName = "main"
	WalletROI      WalletName = "roi"
	WalletReferral WalletName = "referral"
	WalletLevel    WalletName = "level"
	WalletBinary   WalletName = "binary"
	WalletHold     WalletName = "hold"
)

// Valid reports whether the wallet name is one of the known balances
func (w WalletName) Valid() bool {
	switch w {
	case WalletMain, WalletROI, WalletReferral, WalletLevel, WalletBinary, WalletHold:
		return true
	}
	return false
}

// EntryDirection defines the sign of a ledger mutation
type EntryDirection string

const (
	DirectionCredit EntryDirection = "CREDIT"
	DirectionDebit  EntryDirection = "DEBIT"
)

// EntryStatus defines ledger entry states
type EntryStatus string

const (
	EntryStatusCompleted EntryStatus = "COMPLETED"
	EntryStatusFailed    EntryStatus = "FAILED"
)

// CommissionType defines the three commission streams
type CommissionType string

const (
	CommissionDirect CommissionType = "direct"
	CommissionLevel  CommissionType = "level"
	CommissionBinary CommissionType = "binary"
)

// CommissionStatus defines commission lifecycle states
type CommissionStatus string

const (
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusRejected CommissionStatus = "rejected"
)

// InvestmentStatus defines investment lifecycle states
type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusCompleted InvestmentStatus = "completed"
	InvestmentStatusMatured   InvestmentStatus = "matured"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

// PayoutFrequency defines how often an investment accrues a payout
type PayoutFrequency string

const (
	FrequencyDaily   PayoutFrequency = "daily"
	FrequencyWeekly  PayoutFrequency = "weekly"
	FrequencyMonthly PayoutFrequency = "monthly"
)

// JobStatus defines scheduled job states
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// RunStatus defines the outcome of a single job execution
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusPartial RunStatus = "partial"
)

// OutboxStatus defines audit outbox message states
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// ParticipantStatus defines account states for participants
type ParticipantStatus string

const (
	ParticipantActive    ParticipantStatus = "active"
	ParticipantSuspended ParticipantStatus = "suspended"
	ParticipantClosed    ParticipantStatus = "closed"
)
