package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// PassSentinel is the exact token the verification prompt instructs the
// model to emit for a correct answer. Any other completion counts as a fail
// and its text is kept as the grading rationale.
const PassSentinel = "verification_passed"

// Prompts holds the backend-facing templates, rendered with positional
// fmt verbs like the message catalog.
type Prompts struct {
	GenerateChallenge string `mapstructure:"generate_challenge"`
	VerifyAnswer      string `mapstructure:"verify_answer"`
}

// DefaultPrompts returns the stock prompt templates.
func DefaultPrompts() Prompts {
	return Prompts{
		GenerateChallenge: "Generate one short knowledge question about the topic: %s. " +
			"Reply with the question text only, no preamble.",
		VerifyAnswer: "The question was: \"%s\". The applicant answered: \"%s\". " +
			"If the answer is essentially correct, reply with exactly " + PassSentinel +
			" and nothing else. Otherwise state briefly what is wrong.",
	}
}

// Verification is the graded outcome of one answer.
type Verification struct {
	Passed    bool
	Rationale string
}

// Gateway turns the raw completion client into the two admission operations.
// It never exposes model output to callers beyond the question text and the
// grading rationale.
type Gateway struct {
	client  Client
	prompts Prompts
	logger  zerolog.Logger
}

func NewGateway(client Client, prompts Prompts, logger zerolog.Logger) *Gateway {
	return &Gateway{
		client:  client,
		prompts: prompts,
		logger:  logger.With().Str("service", "llm_gateway").Logger(),
	}
}

// GenerateChallenge produces a question scoped to topic.
func (g *Gateway) GenerateChallenge(ctx context.Context, topic string) (string, error) {
	out, err := g.client.Complete(ctx, fmt.Sprintf(g.prompts.GenerateChallenge, topic))
	if err != nil {
		return "", fmt.Errorf("generate challenge: %w", err)
	}
	question := strings.TrimSpace(out)
	if question == "" {
		return "", errors.New("generate challenge: empty completion")
	}
	g.logger.Debug().Str("topic", topic).Msg("challenge generated")
	return question, nil
}

// VerifyAnswer grades an answer against its question via the sentinel policy.
func (g *Gateway) VerifyAnswer(ctx context.Context, question, answer string) (Verification, error) {
	out, err := g.client.Complete(ctx, fmt.Sprintf(g.prompts.VerifyAnswer, question, answer))
	if err != nil {
		return Verification{}, fmt.Errorf("verify answer: %w", err)
	}
	reply := strings.TrimSpace(out)
	if reply == PassSentinel {
		return Verification{Passed: true}, nil
	}
	g.logger.Debug().Str("rationale", reply).Msg("answer rejected by grader")
	return Verification{Passed: false, Rationale: reply}, nil
}
