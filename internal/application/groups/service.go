package groups

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

// Service manages the registry of screened groups.
type Service struct {
	registry group.Registry
	logger   zerolog.Logger
}

// NewService creates a groups service.
func NewService(registry group.Registry, logger zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		logger:   logger.With().Str("service", "groups").Logger(),
	}
}

// UpsertInput defines a group create or partial update. Nil fields keep the
// stored value.
type UpsertInput struct {
	ChatID    int64
	Title     string
	Allowed   *bool
	Topic     *string
	Prescreen *string
}

// Upsert creates or updates a group configuration. New groups start allowed.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) (*group.Config, error) {
	if input.ChatID == 0 {
		return nil, fmt.Errorf("chat_id is required")
	}

	cfg, err := s.registry.Get(ctx, input.ChatID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if cfg == nil {
		cfg = &group.Config{
			ChatID:    input.ChatID,
			Allowed:   true,
			CreatedAt: now,
		}
	}

	if input.Title != "" {
		cfg.Title = input.Title
	}
	if input.Allowed != nil {
		cfg.Allowed = *input.Allowed
	}
	if input.Topic != nil {
		topic := group.NormalizeTopic(*input.Topic)
		if err := group.ValidateTopic(topic); err != nil {
			return nil, err
		}
		cfg.Topic = topic
	}
	if input.Prescreen != nil {
		expr := strings.TrimSpace(*input.Prescreen)
		if err := validatePrescreen(expr); err != nil {
			return nil, err
		}
		cfg.Prescreen = expr
	}
	cfg.UpdatedAt = now

	if err := s.registry.Upsert(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("chat_id", cfg.ChatID).
		Str("title", cfg.Title).
		Str("topic", cfg.Topic).
		Bool("allowed", cfg.Allowed).
		Msg("group configuration saved")
	return cfg, nil
}

// SetTopic updates the question topic for a group, registering the group
// first when it is not yet known. This backs the in-chat /settopic command.
func (s *Service) SetTopic(ctx context.Context, chatID int64, title, topic string) (*group.Config, error) {
	normalized := group.NormalizeTopic(topic)
	if err := group.ValidateTopic(normalized); err != nil {
		return nil, err
	}
	return s.Upsert(ctx, UpsertInput{ChatID: chatID, Title: title, Topic: &normalized})
}

// Get returns the configuration for one chat, nil when unknown.
func (s *Service) Get(ctx context.Context, chatID int64) (*group.Config, error) {
	return s.registry.Get(ctx, chatID)
}

// List returns all registered groups.
func (s *Service) List(ctx context.Context) ([]*group.Config, error) {
	return s.registry.List(ctx)
}

// Delete removes a group from the registry.
func (s *Service) Delete(ctx context.Context, chatID int64) error {
	if err := s.registry.Delete(ctx, chatID); err != nil {
		return err
	}
	s.logger.Info().Int64("chat_id", chatID).Msg("group removed")
	return nil
}

// validatePrescreen rejects expressions govaluate cannot parse. Runtime
// evaluation failures are handled leniently, so syntax errors are caught here
// at configuration time.
func validatePrescreen(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := govaluate.NewEvaluableExpression(expr); err != nil {
		return fmt.Errorf("invalid prescreen expression: %w", err)
	}
	return nil
}
