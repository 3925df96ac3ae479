package challenge

import (
	"time"

	"github.com/google/uuid"
)

// Status represents challenge status.
type Status string

const (
	// StatusPending means the question was delivered and the deadline timer is armed.
	StatusPending Status = "PENDING"
	// StatusAnswered means a resolution path claimed the challenge and is grading it.
	StatusAnswered Status = "ANSWERED"
)

// Key identifies a challenge by the requesting user and the target group chat.
type Key struct {
	UserID int64 `json:"user_id"`
	ChatID int64 `json:"chat_id"`
}

// Challenge is one outstanding admission question for a (user, chat) pair.
// DisplayName and ChatTitle are carried so the deadline path can notify and
// record without another transport lookup.
type Challenge struct {
	ID          uuid.UUID `json:"id"`
	Key         Key       `json:"key"`
	Question    string    `json:"question"`
	DisplayName string    `json:"display_name,omitempty"`
	ChatTitle   string    `json:"chat_title,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	Deadline    time.Time `json:"deadline"`
	Status      Status    `json:"status"`
}

// Expired reports whether the deadline has passed.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.Deadline)
}

// Remaining returns the time left before the deadline, floored at zero.
func (c *Challenge) Remaining(now time.Time) time.Duration {
	if d := c.Deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
