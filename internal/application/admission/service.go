package admission

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatekeeper-bot/gatekeeper/internal/domain/challenge"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/cooldown"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/verification"
	"github.com/gatekeeper-bot/gatekeeper/internal/events"
	"github.com/gatekeeper-bot/gatekeeper/internal/llm"
	"github.com/gatekeeper-bot/gatekeeper/internal/messages"
	"github.com/gatekeeper-bot/gatekeeper/internal/observability"
)

// Backend generates challenge questions and grades answers.
type Backend interface {
	GenerateChallenge(ctx context.Context, topic string) (string, error)
	VerifyAnswer(ctx context.Context, question, answer string) (llm.Verification, error)
}

// Transport delivers notices and admission decisions to the chat platform.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	DeclineJoinRequest(ctx context.Context, chatID, userID int64) error
}

// Recorder appends entries to the verification history.
type Recorder interface {
	Record(ctx context.Context, rec verification.Record)
}

// Outcome names the resolution path one admission operation took.
type Outcome string

const (
	OutcomeIgnored           Outcome = "IGNORED"
	OutcomeCoolingDown       Outcome = "COOLING_DOWN"
	OutcomeAlreadyChallenged Outcome = "ALREADY_CHALLENGED"
	OutcomePrescreened       Outcome = "PRESCREENED"
	OutcomeBackendFailed     Outcome = "BACKEND_FAILED"
	OutcomeTransportFailed   Outcome = "TRANSPORT_FAILED"
	OutcomeChallenged        Outcome = "CHALLENGED"
	OutcomeNoChallenge       Outcome = "NO_CHALLENGE"
	OutcomeApproved          Outcome = "APPROVED"
	OutcomeDeclined          Outcome = "DECLINED"
)

// JoinRequest is one inbound request to join a screened group.
type JoinRequest struct {
	UserID      int64
	ChatID      int64
	Username    string
	DisplayName string
	ChatTitle   string
}

// Config carries the admission timing knobs.
type Config struct {
	AnswerTimeout time.Duration
	RetryTimeout  time.Duration
	DefaultTopic  string
}

// Service drives each challenge from join request to a terminal decision.
//
// Events for different keys are processed fully in parallel. For one key,
// every store and tracker mutation happens inside the per-key exclusive
// section; backend and transport calls happen outside it. The claim step is
// the linearization point between an incoming answer and the deadline timer:
// exactly one of them resolves a given challenge, the loser observes it
// already claimed and performs no side effect.
type Service struct {
	registry  group.Registry
	store     challenge.Store
	cooldowns cooldown.Tracker
	backend   Backend
	transport Transport
	recorder  Recorder
	publisher events.Publisher
	catalog   messages.Catalog
	cfg       Config
	logger    zerolog.Logger

	locks    *keyLocks
	timersMu sync.Mutex
	timers   map[challenge.Key]*time.Timer
}

// NewService creates the admission service.
func NewService(
	registry group.Registry,
	store challenge.Store,
	cooldowns cooldown.Tracker,
	backend Backend,
	transport Transport,
	recorder Recorder,
	publisher events.Publisher,
	catalog messages.Catalog,
	cfg Config,
	logger zerolog.Logger,
) *Service {
	return &Service{
		registry:  registry,
		store:     store,
		cooldowns: cooldowns,
		backend:   backend,
		transport: transport,
		recorder:  recorder,
		publisher: publisher,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger.With().Str("service", "admission").Logger(),
		locks:     newKeyLocks(),
		timers:    make(map[challenge.Key]*time.Timer),
	}
}

// HandleJoinRequest screens one join request. Unknown and disallowed groups
// are ignored without a user-visible reaction.
func (s *Service) HandleJoinRequest(ctx context.Context, req JoinRequest) (Outcome, error) {
	grp, err := s.registry.Get(ctx, req.ChatID)
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("lookup group %d: %w", req.ChatID, err)
	}
	if grp == nil || !grp.Allowed {
		s.logger.Debug().
			Int64("chat_id", req.ChatID).
			Int64("user_id", req.UserID).
			Msg("join request for unscreened group ignored")
		return OutcomeIgnored, nil
	}
	title := req.ChatTitle
	if title == "" {
		title = grp.Title
	} else if title != grp.Title {
		if err := s.registry.UpdateTitle(ctx, req.ChatID, title); err != nil {
			s.logger.Warn().Err(err).Int64("chat_id", req.ChatID).Msg("failed to refresh group title")
		}
	}

	key := challenge.Key{UserID: req.UserID, ChatID: req.ChatID}

	s.locks.lock(key)
	if cooling, remaining := s.cooldowns.IsCooling(key, time.Now()); cooling {
		s.locks.unlock(key)
		s.logger.Info().
			Int64("user_id", req.UserID).
			Int64("chat_id", req.ChatID).
			Dur("remaining", remaining).
			Msg("join request during cooldown declined")
		if err := s.transport.DeclineJoinRequest(ctx, key.ChatID, key.UserID); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", req.UserID).Msg("cooldown decline call failed")
		}
		s.notify(ctx, req.UserID, s.catalog.RenderRetryTimer(ceilSeconds(remaining)))
		return OutcomeCoolingDown, nil
	}
	if !s.store.Reserve(key) {
		s.locks.unlock(key)
		s.logger.Info().
			Int64("user_id", req.UserID).
			Int64("chat_id", req.ChatID).
			Msg("duplicate join request while challenge outstanding")
		s.notify(ctx, req.UserID, s.catalog.OngoingChallenge)
		return OutcomeAlreadyChallenged, nil
	}
	s.locks.unlock(key)

	if pass, err := evalPrescreen(grp.Prescreen, req); err != nil {
		s.logger.Warn().
			Err(err).
			Int64("chat_id", req.ChatID).
			Str("expression", grp.Prescreen).
			Msg("prescreen evaluation failed, letting request through")
	} else if !pass {
		s.store.Cancel(key)
		s.logger.Info().
			Int64("user_id", req.UserID).
			Int64("chat_id", req.ChatID).
			Msg("join request rejected by prescreen")
		if err := s.transport.DeclineJoinRequest(ctx, key.ChatID, key.UserID); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", req.UserID).Msg("prescreen decline call failed")
		}
		observability.IncDecision("prescreened")
		s.recorder.Record(ctx, verification.Record{
			RecordID:    uuid.New(),
			ChatID:      req.ChatID,
			ChatTitle:   title,
			UserID:      req.UserID,
			DisplayName: req.DisplayName,
			Verdict:     verification.VerdictPrescreened,
			Reason:      "prescreen expression rejected the request",
			CreatedAt:   time.Now().UTC(),
		})
		_ = s.publisher.Publish(ctx, events.RoutePrescreened, events.DecisionEvent{
			EventID:     uuid.New(),
			Decision:    string(verification.VerdictPrescreened),
			UserID:      req.UserID,
			ChatID:      req.ChatID,
			DisplayName: req.DisplayName,
			At:          time.Now().UTC(),
		})
		return OutcomePrescreened, nil
	}

	topic := group.NormalizeTopic(grp.Topic)
	if topic == "" {
		topic = s.cfg.DefaultTopic
	}
	start := time.Now()
	question, err := s.backend.GenerateChallenge(ctx, topic)
	observability.ObserveBackendRequest("generate", time.Since(start))
	if err != nil {
		s.store.Cancel(key)
		observability.IncBackendError("generate")
		s.logger.Error().
			Err(err).
			Int64("user_id", req.UserID).
			Int64("chat_id", req.ChatID).
			Str("topic", topic).
			Msg("challenge generation failed")
		s.notify(ctx, req.UserID, s.catalog.InternalError)
		return OutcomeBackendFailed, nil
	}

	issued := time.Now()
	ch := challenge.Challenge{
		ID:          uuid.New(),
		Key:         key,
		Question:    question,
		DisplayName: req.DisplayName,
		ChatTitle:   title,
		IssuedAt:    issued,
		Deadline:    issued.Add(s.cfg.AnswerTimeout),
		Status:      challenge.StatusPending,
	}

	s.locks.lock(key)
	s.store.Commit(ch)
	s.armTimer(ch)
	s.locks.unlock(key)

	observability.IncChallengeIssued()
	observability.SetActiveChallenges(s.store.Len())

	s.notify(ctx, req.UserID, s.catalog.RenderJoinRequested(
		req.DisplayName, title, question, int(s.cfg.AnswerTimeout.Seconds()),
	))
	s.logger.Info().
		Str("challenge_id", ch.ID.String()).
		Int64("user_id", req.UserID).
		Int64("chat_id", req.ChatID).
		Time("deadline", ch.Deadline).
		Msg("challenge issued")
	return OutcomeChallenged, nil
}

// HandleAnswer grades an answer against the live challenge for (user, chat).
func (s *Service) HandleAnswer(ctx context.Context, userID, chatID int64, answer string) (Outcome, error) {
	key := challenge.Key{UserID: userID, ChatID: chatID}

	s.locks.lock(key)
	ch, ok := s.store.Claim(key)
	s.locks.unlock(key)
	if !ok {
		s.notify(ctx, userID, s.catalog.NoChallenge)
		return OutcomeNoChallenge, nil
	}
	s.stopTimer(key)

	start := time.Now()
	result, err := s.backend.VerifyAnswer(ctx, ch.Question, answer)
	observability.ObserveBackendRequest("verify", time.Since(start))
	if err != nil {
		observability.IncBackendError("verify")
		s.logger.Error().
			Err(err).
			Str("challenge_id", ch.ID.String()).
			Int64("user_id", userID).
			Int64("chat_id", chatID).
			Msg("answer verification failed")
		s.drop(ctx, ch, answer, "verification backend call failed")
		return OutcomeBackendFailed, nil
	}

	if result.Passed {
		return s.resolveApproved(ctx, ch, answer)
	}
	return s.resolveDeclined(ctx, ch, answer, result.Rationale)
}

// HandleReply resolves a bare private-chat reply to the user's most recently
// issued live challenge and grades it.
func (s *Service) HandleReply(ctx context.Context, userID int64, text string) (Outcome, error) {
	keys := s.store.KeysForUser(userID)
	if len(keys) == 0 {
		s.notify(ctx, userID, s.catalog.NoChallenge)
		return OutcomeNoChallenge, nil
	}
	return s.HandleAnswer(ctx, userID, keys[0].ChatID, text)
}

// Shutdown disarms all deadline timers. Challenges are held in memory only,
// so nothing else survives the process.
func (s *Service) Shutdown() {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}

func (s *Service) resolveApproved(ctx context.Context, ch challenge.Challenge, answer string) (Outcome, error) {
	if err := s.transport.ApproveJoinRequest(ctx, ch.Key.ChatID, ch.Key.UserID); err != nil {
		s.logger.Error().
			Err(err).
			Str("challenge_id", ch.ID.String()).
			Int64("user_id", ch.Key.UserID).
			Int64("chat_id", ch.Key.ChatID).
			Msg("approve call failed")
		s.drop(ctx, ch, answer, "approve call failed")
		return OutcomeTransportFailed, nil
	}

	s.locks.lock(ch.Key)
	s.store.Remove(ch.Key, ch.ID)
	s.locks.unlock(ch.Key)

	observability.IncDecision("approved")
	observability.SetActiveChallenges(s.store.Len())
	s.notify(ctx, ch.Key.UserID, s.catalog.CorrectAnswer)
	s.logger.Info().
		Str("challenge_id", ch.ID.String()).
		Int64("user_id", ch.Key.UserID).
		Int64("chat_id", ch.Key.ChatID).
		Msg("join request approved")
	s.recorder.Record(ctx, newRecord(ch, answer, verification.VerdictApproved, ""))
	s.publishDecision(ctx, events.RouteApproved, ch, verification.VerdictApproved)
	return OutcomeApproved, nil
}

func (s *Service) resolveDeclined(ctx context.Context, ch challenge.Challenge, answer, rationale string) (Outcome, error) {
	if err := s.transport.DeclineJoinRequest(ctx, ch.Key.ChatID, ch.Key.UserID); err != nil {
		s.logger.Error().
			Err(err).
			Str("challenge_id", ch.ID.String()).
			Int64("user_id", ch.Key.UserID).
			Int64("chat_id", ch.Key.ChatID).
			Msg("decline call failed")
		s.drop(ctx, ch, answer, "decline call failed")
		return OutcomeTransportFailed, nil
	}

	s.locks.lock(ch.Key)
	s.store.Remove(ch.Key, ch.ID)
	s.cooldowns.Start(ch.Key, time.Now().Add(s.cfg.RetryTimeout))
	s.locks.unlock(ch.Key)

	observability.IncDecision("declined")
	observability.SetActiveChallenges(s.store.Len())
	s.notify(ctx, ch.Key.UserID, s.catalog.RenderWrongAnswer(int(s.cfg.RetryTimeout.Seconds())))
	s.logger.Info().
		Str("challenge_id", ch.ID.String()).
		Int64("user_id", ch.Key.UserID).
		Int64("chat_id", ch.Key.ChatID).
		Msg("join request declined")
	s.recorder.Record(ctx, newRecord(ch, answer, verification.VerdictDeclined, rationale))
	s.publishDecision(ctx, events.RouteDeclined, ch, verification.VerdictDeclined)
	return OutcomeDeclined, nil
}

// expire is the deadline timer callback for one challenge instance. The id
// guard makes a timer armed for an older instance a no-op.
func (s *Service) expire(key challenge.Key, id uuid.UUID) {
	ctx := context.Background()

	s.locks.lock(key)
	ch, ok := s.store.ClaimByID(key, id)
	s.locks.unlock(key)
	if !ok {
		return
	}
	s.stopTimer(key)

	s.logger.Warn().
		Str("challenge_id", id.String()).
		Int64("user_id", key.UserID).
		Int64("chat_id", key.ChatID).
		Msg("challenge timed out")
	if err := s.transport.DeclineJoinRequest(ctx, key.ChatID, key.UserID); err != nil {
		s.logger.Error().
			Err(err).
			Str("challenge_id", id.String()).
			Int64("user_id", key.UserID).
			Int64("chat_id", key.ChatID).
			Msg("decline call failed")
		s.drop(ctx, ch, "", "decline call failed after timeout")
		return
	}

	s.locks.lock(key)
	s.store.Remove(key, id)
	s.cooldowns.Start(key, time.Now().Add(s.cfg.RetryTimeout))
	s.locks.unlock(key)

	observability.IncDecision("timed_out")
	observability.SetActiveChallenges(s.store.Len())
	s.notify(ctx, key.UserID, s.catalog.RenderTimedOut(int(s.cfg.RetryTimeout.Seconds())))
	s.recorder.Record(ctx, newRecord(ch, "", verification.VerdictTimedOut, "no answer before the deadline"))
	s.publishDecision(ctx, events.RouteTimedOut, ch, verification.VerdictTimedOut)
}

// drop removes a claimed challenge without recording an admission decision.
// No cooldown is started: the attempt is treated as never graded and the
// user may be re-challenged by a fresh join request.
func (s *Service) drop(ctx context.Context, ch challenge.Challenge, answer, reason string) {
	s.locks.lock(ch.Key)
	s.store.Remove(ch.Key, ch.ID)
	s.locks.unlock(ch.Key)

	observability.SetActiveChallenges(s.store.Len())
	s.notify(ctx, ch.Key.UserID, s.catalog.InternalError)
	s.recorder.Record(ctx, newRecord(ch, answer, verification.VerdictError, reason))
}

func (s *Service) armTimer(ch challenge.Challenge) {
	key, id := ch.Key, ch.ID
	s.timersMu.Lock()
	s.timers[key] = time.AfterFunc(time.Until(ch.Deadline), func() {
		s.expire(key, id)
	})
	s.timersMu.Unlock()
}

func (s *Service) stopTimer(key challenge.Key) {
	s.timersMu.Lock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
	s.timersMu.Unlock()
}

func (s *Service) notify(ctx context.Context, userID int64, text string) {
	if err := s.transport.SendMessage(ctx, userID, text); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("failed to send notice")
	}
}

func (s *Service) publishDecision(ctx context.Context, routingKey string, ch challenge.Challenge, verdict verification.Verdict) {
	_ = s.publisher.Publish(ctx, routingKey, events.DecisionEvent{
		EventID:     uuid.New(),
		Decision:    string(verdict),
		UserID:      ch.Key.UserID,
		ChatID:      ch.Key.ChatID,
		DisplayName: ch.DisplayName,
		Question:    ch.Question,
		At:          time.Now().UTC(),
	})
}

func newRecord(ch challenge.Challenge, answer string, verdict verification.Verdict, reason string) verification.Record {
	return verification.Record{
		RecordID:    uuid.New(),
		ChatID:      ch.Key.ChatID,
		ChatTitle:   ch.ChatTitle,
		UserID:      ch.Key.UserID,
		DisplayName: ch.DisplayName,
		Question:    ch.Question,
		Answer:      answer,
		Verdict:     verdict,
		Reason:      reason,
		CreatedAt:   time.Now().UTC(),
	}
}

// ceilSeconds rounds a remaining duration up so an active hold never reads
// as zero seconds.
func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
