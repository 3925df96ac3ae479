package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendMessage(t *testing.T) {
	t.Run("posts the text to the chat", func(t *testing.T) {
		var got sendMessageRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			raw, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(raw, &got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "TOKEN")
		err := c.SendMessage(context.Background(), 42, "Hi Ada!")

		require.NoError(t, err)
		assert.Equal(t, int64(42), got.ChatID)
		assert.Equal(t, "Hi Ada!", got.Text)
	})

	t.Run("surfaces the api error envelope", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "TOKEN")
		err := c.SendMessage(context.Background(), 42, "Hi")

		require.Error(t, err)
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusForbidden, reqErr.StatusCode)
		assert.Equal(t, 403, reqErr.ErrorCode)
		assert.Contains(t, err.Error(), "telegram http 403")
		assert.Contains(t, err.Error(), "blocked by the user")
	})

	t.Run("rejects empty text locally", func(t *testing.T) {
		c := NewClient(nil, "http://unused", "TOKEN")
		err := c.SendMessage(context.Background(), 42, "   ")
		require.Error(t, err)
	})
}

func TestClientJoinRequestDecisions(t *testing.T) {
	var paths []string
	var bodies []joinRequestDecision
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body joinRequestDecision
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")
	require.NoError(t, c.ApproveJoinRequest(context.Background(), -100, 42))
	require.NoError(t, c.DeclineJoinRequest(context.Background(), -100, 43))

	require.Len(t, paths, 2)
	assert.Equal(t, "/botTOKEN/approveChatJoinRequest", paths[0])
	assert.Equal(t, "/botTOKEN/declineChatJoinRequest", paths[1])
	assert.Equal(t, joinRequestDecision{ChatID: -100, UserID: 42}, bodies[0])
	assert.Equal(t, joinRequestDecision{ChatID: -100, UserID: 43}, bodies[1])
}

func TestClientGetUpdates(t *testing.T) {
	t.Run("requests join updates and advances the offset", func(t *testing.T) {
		var query string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":[
				{"update_id":7,"message":{"message_id":1,"chat":{"id":5,"type":"private"},"from":{"id":5},"text":"hertz"}},
				{"update_id":9,"chat_join_request":{"chat":{"id":-100,"type":"supergroup"},"from":{"id":42}}}
			]}`))
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "TOKEN")
		updates, next, err := c.GetUpdates(context.Background(), 7, 10*time.Second)

		require.NoError(t, err)
		require.Len(t, updates, 2)
		assert.Equal(t, int64(10), next)
		assert.NotNil(t, updates[0].Message)
		assert.NotNil(t, updates[1].ChatJoinRequest)
		assert.Contains(t, query, "timeout=10")
		assert.Contains(t, query, "offset=7")
		assert.Contains(t, query, "chat_join_request")
	})

	t.Run("keeps the offset on failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "TOKEN")
		_, next, err := c.GetUpdates(context.Background(), 7, time.Second)

		require.Error(t, err)
		assert.Equal(t, int64(7), next)
		assert.Contains(t, err.Error(), "telegram http 502")
	})
}

func TestClientGetMe(t *testing.T) {
	t.Run("returns the bot account", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/botTOKEN/getMe", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":99,"is_bot":true,"username":"gatekeeper_bot"}}`))
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "TOKEN")
		me, err := c.GetMe(context.Background())

		require.NoError(t, err)
		assert.Equal(t, int64(99), me.ID)
		assert.Equal(t, "gatekeeper_bot", me.Username)
	})

	t.Run("bad token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.Client(), srv.URL, "BAD")
		_, err := c.GetMe(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram http 401")
	})
}

func TestClientGetChatMember(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getChatMember", r.URL.Path)
		assert.Equal(t, "-100", r.URL.Query().Get("chat_id"))
		assert.Equal(t, "42", r.URL.Query().Get("user_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"status":"administrator","user":{"id":42}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "TOKEN")
	member, err := c.GetChatMember(context.Background(), -100, 42)

	require.NoError(t, err)
	assert.Equal(t, "administrator", member.Status)
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name string
		user *User
		want string
	}{
		{"nil user", nil, ""},
		{"first and last", &User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{"first only", &User{FirstName: "Ada"}, "Ada"},
		{"last only", &User{LastName: "Lovelace"}, "Lovelace"},
		{"username fallback", &User{Username: "ada"}, "@ada"},
		{"empty profile", &User{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DisplayName(tc.user))
		})
	}
}

func TestIsPollTimeout(t *testing.T) {
	assert.False(t, IsPollTimeout(nil))
	assert.False(t, IsPollTimeout(errors.New("connection refused")))
	assert.True(t, IsPollTimeout(context.DeadlineExceeded))
	assert.True(t, IsPollTimeout(errors.New("Get \"x\": context deadline exceeded")))
	assert.True(t, IsPollTimeout(errors.New("net/http: request canceled (Client.Timeout exceeded while awaiting headers)")))
}

func TestRequestErrorMessage(t *testing.T) {
	cases := []struct {
		err  *RequestError
		want string
	}{
		{&RequestError{StatusCode: 400, Description: "Bad Request"}, "telegram http 400: Bad Request"},
		{&RequestError{Description: "Flood"}, "telegram: Flood"},
		{&RequestError{StatusCode: 500, Body: "oops"}, "telegram http 500: oops"},
		{&RequestError{StatusCode: 500}, "telegram http 500"},
		{&RequestError{}, "telegram request failed"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Error())
	}
}
