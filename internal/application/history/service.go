package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/verification"
)

// Service handles the verification history log.
type Service struct {
	repo   verification.Repository
	logger zerolog.Logger
}

// NewService creates a history service.
func NewService(repo verification.Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("service", "history").Logger(),
	}
}

// Record appends one history entry asynchronously. Admission paths never
// block on history writes; a failed write is logged and the entry lost.
func (s *Service) Record(ctx context.Context, rec verification.Record) {
	go func() {
		if err := s.RecordSync(context.Background(), rec); err != nil {
			s.logger.Error().Err(err).
				Str("record_id", rec.RecordID.String()).
				Int64("user_id", rec.UserID).
				Int64("chat_id", rec.ChatID).
				Str("verdict", string(rec.Verdict)).
				Msg("failed to record verification")
		}
	}()
}

// RecordSync appends one history entry synchronously.
func (s *Service) RecordSync(ctx context.Context, rec verification.Record) error {
	if !verification.ValidVerdict(rec.Verdict) {
		return fmt.Errorf("record verification: unknown verdict %q", rec.Verdict)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.Insert(ctx, &rec); err != nil {
		return fmt.Errorf("record verification: %w", err)
	}

	s.logger.Debug().
		Str("record_id", rec.RecordID.String()).
		Int64("user_id", rec.UserID).
		Int64("chat_id", rec.ChatID).
		Str("verdict", string(rec.Verdict)).
		Msg("verification recorded")
	return nil
}

// QueryParams narrow a history query. Nil fields match everything.
type QueryParams struct {
	ChatID  *int64
	UserID  *int64
	Verdict *string
	Since   *time.Time
	Limit   int
}

// QueryResult is one page of history entries, newest first.
type QueryResult struct {
	Records []*verification.Record `json:"records"`
	Count   int                    `json:"count"`
	Total   int64                  `json:"total"`
}

// Query retrieves history entries matching the parameters.
func (s *Service) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	if params.Limit > 200 {
		params.Limit = 200
	}

	filter := verification.Filter{
		ChatID: params.ChatID,
		UserID: params.UserID,
		Since:  params.Since,
	}
	if params.Verdict != nil && *params.Verdict != "" {
		v := verification.Verdict(strings.ToUpper(*params.Verdict))
		if !verification.ValidVerdict(v) {
			return nil, fmt.Errorf("unknown verdict %q", *params.Verdict)
		}
		filter.Verdict = &v
	}

	records, err := s.repo.Query(ctx, filter, params.Limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query verification history")
		return nil, fmt.Errorf("query verification history: %w", err)
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to count verification history")
		total = int64(len(records))
	}

	return &QueryResult{
		Records: records,
		Count:   len(records),
		Total:   total,
	}, nil
}
