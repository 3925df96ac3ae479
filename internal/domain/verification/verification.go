package verification

import (
	"time"

	"github.com/google/uuid"
)

// Verdict is the recorded outcome of one admission attempt.
type Verdict string

const (
	VerdictApproved    Verdict = "APPROVED"
	VerdictDeclined    Verdict = "DECLINED"
	VerdictTimedOut    Verdict = "TIMED_OUT"
	VerdictError       Verdict = "ERROR"
	VerdictPrescreened Verdict = "PRESCREENED"
)

// ValidVerdict reports whether v is one of the known verdicts.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictApproved, VerdictDeclined, VerdictTimedOut, VerdictError, VerdictPrescreened:
		return true
	}
	return false
}

// Record is one audit entry in the verification history.
type Record struct {
	ID          int64     `json:"id"`
	RecordID    uuid.UUID `json:"record_id"`
	ChatID      int64     `json:"chat_id"`
	ChatTitle   string    `json:"chat_title"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Verdict     Verdict   `json:"verdict"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows history queries. Nil fields match everything.
type Filter struct {
	ChatID  *int64
	UserID  *int64
	Verdict *Verdict
	Since   *time.Time
}
