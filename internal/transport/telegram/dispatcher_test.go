package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-bot/gatekeeper/internal/application/admission"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

type admissionStub struct {
	mu      sync.Mutex
	joins   []admission.JoinRequest
	replies []string
	outcome admission.Outcome
}

func (a *admissionStub) HandleJoinRequest(_ context.Context, req admission.JoinRequest) (admission.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joins = append(a.joins, req)
	return a.outcome, nil
}

func (a *admissionStub) HandleReply(_ context.Context, userID int64, text string) (admission.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies = append(a.replies, fmt.Sprintf("%d:%s", userID, text))
	return a.outcome, nil
}

func (a *admissionStub) joinCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.joins)
}

type groupsStub struct {
	mu     sync.Mutex
	chatID int64
	title  string
	topic  string
	calls  int
	err    error
}

func (g *groupsStub) SetTopic(_ context.Context, chatID int64, title, topic string) (*group.Config, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	g.chatID, g.title, g.topic = chatID, title, topic
	return &group.Config{ChatID: chatID, Title: title, Topic: topic, Allowed: true}, nil
}

// commandServer fakes the two Bot API methods the /settopic path touches.
func commandServer(t *testing.T, memberStatus string, sent *[]string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getChatMember"):
			fmt.Fprintf(w, `{"ok":true,"result":{"status":%q}}`, memberStatus)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			raw, _ := io.ReadAll(r.Body)
			var req sendMessageRequest
			_ = json.Unmarshal(raw, &req)
			mu.Lock()
			*sent = append(*sent, req.Text)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	}))
}

func TestDispatchJoinRequest(t *testing.T) {
	adm := &admissionStub{outcome: admission.OutcomeChallenged}
	d := NewDispatcher(NewClient(nil, "http://unused", "TOKEN"), adm, &groupsStub{}, time.Second, zerolog.Nop())

	d.dispatch(context.Background(), Update{
		UpdateID: 1,
		ChatJoinRequest: &ChatJoinRequest{
			Chat: &Chat{ID: -100, Type: "supergroup", Title: "Radio Club"},
			From: &User{ID: 42, Username: "ada", FirstName: "Ada", LastName: "Lovelace"},
		},
	})

	require.Len(t, adm.joins, 1)
	assert.Equal(t, admission.JoinRequest{
		UserID:      42,
		ChatID:      -100,
		Username:    "ada",
		DisplayName: "Ada Lovelace",
		ChatTitle:   "Radio Club",
	}, adm.joins[0])
}

func TestDispatchMessage(t *testing.T) {
	t.Run("private text becomes a reply", func(t *testing.T) {
		adm := &admissionStub{outcome: admission.OutcomeApproved}
		d := NewDispatcher(NewClient(nil, "http://unused", "TOKEN"), adm, &groupsStub{}, time.Second, zerolog.Nop())

		d.dispatch(context.Background(), Update{Message: &Message{
			Chat: &Chat{ID: 42, Type: "private"},
			From: &User{ID: 42},
			Text: "  hertz  ",
		}})

		assert.Equal(t, []string{"42:hertz"}, adm.replies)
	})

	t.Run("ignored updates", func(t *testing.T) {
		adm := &admissionStub{}
		d := NewDispatcher(NewClient(nil, "http://unused", "TOKEN"), adm, &groupsStub{}, time.Second, zerolog.Nop())

		for _, u := range []Update{
			{Message: &Message{Chat: &Chat{ID: 1, Type: "private"}, From: &User{ID: 1, IsBot: true}, Text: "hi"}},
			{Message: &Message{Chat: &Chat{ID: 1, Type: "private"}, From: &User{ID: 1}, Text: "/start"}},
			{Message: &Message{Chat: &Chat{ID: 1, Type: "private"}, From: &User{ID: 1}, Text: "   "}},
			{Message: &Message{Chat: &Chat{ID: -5, Type: "supergroup"}, From: &User{ID: 1}, Text: "hello all"}},
			{Message: &Message{From: &User{ID: 1}, Text: "no chat"}},
			{ChatJoinRequest: &ChatJoinRequest{Chat: &Chat{ID: -5}, From: &User{ID: 9, IsBot: true}}},
			{},
		} {
			d.dispatch(context.Background(), u)
		}

		assert.Empty(t, adm.joins)
		assert.Empty(t, adm.replies)
	})

	t.Run("handler panic is contained", func(t *testing.T) {
		d := NewDispatcher(NewClient(nil, "http://unused", "TOKEN"), nil, &groupsStub{}, time.Second, zerolog.Nop())

		assert.NotPanics(t, func() {
			// nil admission handler panics inside dispatch; the loop must survive.
			d.dispatch(context.Background(), Update{Message: &Message{
				Chat: &Chat{ID: 42, Type: "private"},
				From: &User{ID: 42},
				Text: "hertz",
			}})
		})
	})
}

func TestHandleSetTopic(t *testing.T) {
	t.Run("admin sets the topic", func(t *testing.T) {
		var sent []string
		srv := commandServer(t, "administrator", &sent)
		defer srv.Close()
		grp := &groupsStub{}
		d := NewDispatcher(NewClient(srv.Client(), srv.URL, "TOKEN"), &admissionStub{}, grp, time.Second, zerolog.Nop())

		d.dispatch(context.Background(), Update{Message: &Message{
			Chat: &Chat{ID: -100, Type: "supergroup", Title: "Radio Club"},
			From: &User{ID: 7},
			Text: "/settopic@gatekeeper_bot amateur radio",
		}})

		assert.Equal(t, 1, grp.calls)
		assert.Equal(t, int64(-100), grp.chatID)
		assert.Equal(t, "Radio Club", grp.title)
		assert.Equal(t, "amateur radio", grp.topic)
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "amateur radio")
	})

	t.Run("non-admin is refused", func(t *testing.T) {
		var sent []string
		srv := commandServer(t, "member", &sent)
		defer srv.Close()
		grp := &groupsStub{}
		d := NewDispatcher(NewClient(srv.Client(), srv.URL, "TOKEN"), &admissionStub{}, grp, time.Second, zerolog.Nop())

		d.dispatch(context.Background(), Update{Message: &Message{
			Chat: &Chat{ID: -100, Type: "supergroup"},
			From: &User{ID: 7},
			Text: "/settopic amateur radio",
		}})

		assert.Equal(t, 0, grp.calls)
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "administrators")
	})

	t.Run("missing argument prints usage", func(t *testing.T) {
		var sent []string
		srv := commandServer(t, "creator", &sent)
		defer srv.Close()
		grp := &groupsStub{}
		d := NewDispatcher(NewClient(srv.Client(), srv.URL, "TOKEN"), &admissionStub{}, grp, time.Second, zerolog.Nop())

		d.dispatch(context.Background(), Update{Message: &Message{
			Chat: &Chat{ID: -100, Type: "supergroup"},
			From: &User{ID: 7},
			Text: "/settopic",
		}})

		assert.Equal(t, 0, grp.calls)
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "Usage")
	})

	t.Run("service failure is reported", func(t *testing.T) {
		var sent []string
		srv := commandServer(t, "administrator", &sent)
		defer srv.Close()
		grp := &groupsStub{err: errors.New("registry down")}
		d := NewDispatcher(NewClient(srv.Client(), srv.URL, "TOKEN"), &admissionStub{}, grp, time.Second, zerolog.Nop())

		d.dispatch(context.Background(), Update{Message: &Message{
			Chat: &Chat{ID: -100, Type: "supergroup"},
			From: &User{ID: 7},
			Text: "/settopic radio",
		}})

		require.Len(t, sent, 1)
		assert.Contains(t, sent[0], "Failed")
	})
}

func TestSplitCommand(t *testing.T) {
	cases := []struct {
		text, cmd, arg string
	}{
		{"/settopic amateur radio", "/settopic", "amateur radio"},
		{"/settopic@gatekeeper_bot ham", "/settopic", "ham"},
		{"/settopic", "/settopic", ""},
		{"/settopic   ", "/settopic", ""},
		{"hello", "", ""},
	}
	for _, tc := range cases {
		cmd, arg := splitCommand(tc.text)
		assert.Equal(t, tc.cmd, cmd, tc.text)
		assert.Equal(t, tc.arg, arg, tc.text)
	}
}

func TestDispatcherRun(t *testing.T) {
	offsets := make(chan string, 1)
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":99,"is_bot":true,"username":"gatekeeper_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			n := atomic.AddInt32(&polls, 1)
			if n == 1 {
				if r.URL.Query().Get("offset") != "" {
					t.Errorf("first poll should carry no offset, got %q", r.URL.Query().Get("offset"))
				}
				_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":10,"chat_join_request":{
					"chat":{"id":-100,"type":"supergroup","title":"Radio Club"},
					"from":{"id":42,"username":"ada","first_name":"Ada"}}}]}`))
				return
			}
			if n == 2 {
				offsets <- r.URL.Query().Get("offset")
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			t.Errorf("unexpected request: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	adm := &admissionStub{outcome: admission.OutcomeChallenged}
	d := NewDispatcher(NewClient(srv.Client(), srv.URL, "TOKEN"), adm, &groupsStub{}, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case got := <-offsets:
		assert.Equal(t, "11", got)
	case <-time.After(5 * time.Second):
		t.Fatal("second poll never happened")
	}
	require.Eventually(t, func() bool { return adm.joinCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	adm.mu.Lock()
	defer adm.mu.Unlock()
	assert.Equal(t, "Ada", adm.joins[0].DisplayName)
	assert.Equal(t, int64(-100), adm.joins[0].ChatID)
}
