package group

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("group not found")
	ErrInvalidTopic = errors.New("topic must not be empty")
)

// Config is the per-group screening configuration.
//
// Allowed gates whether join requests for the chat are screened at all.
// Topic scopes generated questions; when empty the service-wide default
// topic applies. Prescreen optionally holds a boolean expression evaluated
// against the requesting user before any question is generated.
type Config struct {
	ChatID    int64     `json:"chat_id"`
	Title     string    `json:"title"`
	Allowed   bool      `json:"allowed"`
	Topic     string    `json:"topic"`
	Prescreen string    `json:"prescreen,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeTopic trims surrounding whitespace.
func NormalizeTopic(topic string) string {
	return strings.TrimSpace(topic)
}

// ValidateTopic rejects empty topics.
func ValidateTopic(topic string) error {
	if NormalizeTopic(topic) == "" {
		return ErrInvalidTopic
	}
	return nil
}
