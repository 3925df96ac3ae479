package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gatekeeper-bot/gatekeeper/internal/application/admission"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

// AdmissionHandler is the slice of the admission service the dispatcher drives.
type AdmissionHandler interface {
	HandleJoinRequest(ctx context.Context, req admission.JoinRequest) (admission.Outcome, error)
	HandleReply(ctx context.Context, userID int64, text string) (admission.Outcome, error)
}

// GroupAdmin is the slice of the groups service behind in-chat commands.
type GroupAdmin interface {
	SetTopic(ctx context.Context, chatID int64, title, topic string) (*group.Config, error)
}

// Dispatcher long-polls the Bot API and routes each update: join requests to
// admission screening, private text to answer grading, group commands to
// group administration.
type Dispatcher struct {
	api         *Client
	admission   AdmissionHandler
	groups      GroupAdmin
	pollTimeout time.Duration
	logger      zerolog.Logger
}

// NewDispatcher creates a dispatcher over an authenticated client.
func NewDispatcher(api *Client, admissionSvc AdmissionHandler, groupsSvc GroupAdmin, pollTimeout time.Duration, logger zerolog.Logger) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Dispatcher{
		api:         api,
		admission:   admissionSvc,
		groups:      groupsSvc,
		pollTimeout: pollTimeout,
		logger:      logger.With().Str("service", "telegram").Logger(),
	}
}

// Run verifies the bot token and polls until ctx is canceled. Startup keeps
// retrying while the API is unreachable so the process can come up before
// its network does.
func (d *Dispatcher) Run(ctx context.Context) error {
	me, err := d.waitForMe(ctx)
	if err != nil {
		return err
	}
	d.logger.Info().
		Int64("bot_id", me.ID).
		Str("username", me.Username).
		Msg("telegram bot online")

	var offset int64
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		updates, next, err := d.api.GetUpdates(ctx, offset, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if IsPollTimeout(err) {
				continue
			}
			d.logger.Warn().Err(err).Msg("failed to poll updates")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		offset = next
		for _, u := range updates {
			// Handlers can block on a backend call for seconds; they must
			// not hold up the poll loop or each other.
			go d.dispatch(ctx, u)
		}
	}
}

func (d *Dispatcher) waitForMe(ctx context.Context) (*User, error) {
	for {
		me, err := d.api.GetMe(ctx)
		if err == nil {
			return me, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.logger.Warn().Err(err).Msg("getMe failed, retrying")
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// dispatch routes one update. A panic in a handler is contained so one bad
// update cannot take down the poll loop.
func (d *Dispatcher) dispatch(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().
				Interface("panic", r).
				Int64("update_id", u.UpdateID).
				Msg("update handler panicked")
		}
	}()

	switch {
	case u.ChatJoinRequest != nil:
		d.handleJoinRequest(ctx, u.ChatJoinRequest)
	case u.Message != nil:
		d.handleMessage(ctx, u.Message)
	}
}

func (d *Dispatcher) handleJoinRequest(ctx context.Context, jr *ChatJoinRequest) {
	if jr.From == nil || jr.Chat == nil || jr.From.IsBot {
		return
	}
	req := admission.JoinRequest{
		UserID:      jr.From.ID,
		ChatID:      jr.Chat.ID,
		Username:    jr.From.Username,
		DisplayName: DisplayName(jr.From),
		ChatTitle:   jr.Chat.Title,
	}
	outcome, err := d.admission.HandleJoinRequest(ctx, req)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Int64("user_id", req.UserID).
			Int64("chat_id", req.ChatID).
			Msg("join request handling failed")
		return
	}
	d.logger.Debug().
		Int64("user_id", req.UserID).
		Int64("chat_id", req.ChatID).
		Str("outcome", string(outcome)).
		Msg("join request handled")
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *Message) {
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch msg.Chat.Type {
	case "private":
		if strings.HasPrefix(text, "/") {
			return
		}
		outcome, err := d.admission.HandleReply(ctx, msg.From.ID, text)
		if err != nil {
			d.logger.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("reply handling failed")
			return
		}
		d.logger.Debug().
			Int64("user_id", msg.From.ID).
			Str("outcome", string(outcome)).
			Msg("reply handled")
	case "group", "supergroup":
		if cmd, arg := splitCommand(text); cmd == "/settopic" {
			d.handleSetTopic(ctx, msg, arg)
		}
	}
}

// splitCommand splits "/cmd@bot arg..." into the bare command and its argument.
func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	cmd, arg, _ := strings.Cut(text, " ")
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	return cmd, strings.TrimSpace(arg)
}

func (d *Dispatcher) handleSetTopic(ctx context.Context, msg *Message, topic string) {
	member, err := d.api.GetChatMember(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		d.logger.Warn().
			Err(err).
			Int64("chat_id", msg.Chat.ID).
			Int64("user_id", msg.From.ID).
			Msg("admin check failed")
		return
	}
	if member.Status != "creator" && member.Status != "administrator" {
		d.reply(ctx, msg.Chat.ID, "Only group administrators can change the question topic.")
		return
	}
	if topic == "" {
		d.reply(ctx, msg.Chat.ID, "Usage: /settopic <topic>")
		return
	}

	cfg, err := d.groups.SetTopic(ctx, msg.Chat.ID, msg.Chat.Title, topic)
	if err != nil {
		d.logger.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("failed to set topic")
		d.reply(ctx, msg.Chat.ID, "Failed to update the topic.")
		return
	}
	d.reply(ctx, msg.Chat.ID, fmt.Sprintf("Questions for new join requests will now be about: %s", cfg.Topic))
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.api.SendMessage(ctx, chatID, text); err != nil {
		d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
	}
}
