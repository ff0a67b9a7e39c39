package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"chat/config"
	"chat/infrastructure/connection"
	"chat/internal/api"
	"chat/internal/auth"
	"chat/internal/avatar"
	"chat/internal/chat"
	"chat/internal/email"
	"chat/internal/feed"
	"chat/internal/memory"
	"chat/internal/models"
	"chat/internal/realtime"
	"chat/internal/store"
	"chat/internal/typing"
	"chat/internal/user"
)

type noIdentities struct{}

func (noIdentities) AuthCodeURL(provider, state string) (string, error) {
	return "https://idp.example.com/" + provider + "?state=" + state, nil
}

func (noIdentities) Exchange(context.Context, string, string) (*auth.Profile, error) {
	return nil, fmt.Errorf("no provider configured")
}

func newTestServer(t *testing.T, rps int) *httptest.Server {
	t.Helper()
	cfg := &config.Config{Port: "0", RateLimitRPS: rps, WSInsecureSkipCheck: true}

	broker := feed.NewBroker()
	backend := memory.NewBackend(broker)
	tokens := connection.NewTokens([]byte("test-secret"))

	accounts := user.NewUserAccountUseCase(backend, avatar.NewCompressor())
	authUseCase := auth.NewUseCase(backend, backend, accounts, tokens, noIdentities{}, backend, email.NewEmailSender("", 0, "", "", ""), false)
	conversations := chat.NewConversationUseCase(backend, backend)
	typingUseCase := typing.NewUseCase(backend, backend)
	service := realtime.NewService(broker, backend, backend, backend, backend)

	grpcServer, _ := api.NewGRPCServer(tokens)
	server := api.NewServer(cfg, tokens, api.Handlers{
		Auth:    auth.NewJSONAuthHandler(authUseCase),
		User:    user.NewJSONHandler(accounts),
		Chat:    chat.NewJSONHandler(conversations),
		Typing:  typing.ProvideJSONHandler(typingUseCase, backend),
		Session: api.NewSessionHandler(authUseCase, backend, service, conversations, &websocket.AcceptOptions{InsecureSkipVerify: true}),
	}, grpcServer)

	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any) (*http.Response, []byte) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(c.t, err)
	return resp, out.Bytes()
}

func signUp(t *testing.T, base, name string) (*client, *models.User, string) {
	t.Helper()
	c := &client{t: t, base: base}
	resp, body := c.do(http.MethodPost, "/auth/signup", auth.SignUpRequest{
		Email: name + "@example.com", Password: "secret1", Username: name, DisplayName: strings.ToUpper(name),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var session auth.SessionResponse
	require.NoError(t, json.Unmarshal(body, &session))
	c.token = session.AccessToken
	return c, session.User, session.AccessToken
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 100)
	resp, body := (&client{t: t, base: ts.URL}).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t, 100)
	c := &client{t: t, base: ts.URL}

	resp, _ := c.do(http.MethodGet, "/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c.token = "garbage"
	resp, _ = c.do(http.MethodGet, "/conversations", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignUpErrors(t *testing.T) {
	ts := newTestServer(t, 100)
	c := &client{t: t, base: ts.URL}

	resp, _ := c.do(http.MethodPost, "/auth/signup", auth.SignUpRequest{Email: "bad", Password: "secret1", Username: "al", DisplayName: "Al"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	signUp(t, ts.URL, "alice")
	resp, _ = c.do(http.MethodPost, "/auth/signup", auth.SignUpRequest{Email: "alice@example.com", Password: "secret1", Username: "al", DisplayName: "Al"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/auth/signin", auth.SignInRequest{Email: "alice@example.com", Password: "nope!!"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/auth/oauth/callback", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestConversationFlow(t *testing.T) {
	ts := newTestServer(t, 100)
	alice, _, _ := signUp(t, ts.URL, "alice")
	bob, bobUser, _ := signUp(t, ts.URL, "bob")
	carol, _, _ := signUp(t, ts.URL, "carol")

	resp, body := alice.do(http.MethodPost, "/conversations/direct", map[string]string{"userId": bobUser.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var opened struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(body, &opened))
	convPath := "/conversations/" + opened.ConversationID

	resp, body = alice.do(http.MethodPost, convPath+"/messages", map[string]string{"text": "hello bob"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var msg models.Message
	require.NoError(t, json.Unmarshal(body, &msg))

	resp, _ = alice.do(http.MethodPost, convPath+"/messages", map[string]string{"text": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = carol.do(http.MethodGet, convPath+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = carol.do(http.MethodPost, convPath+"/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = bob.do(http.MethodPost, convPath+"/messages/"+msg.ID+"/read", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = bob.do(http.MethodPost, convPath+"/messages/"+msg.ID+"/reactions", map[string]string{"emoji": "👍"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = bob.do(http.MethodPost, convPath+"/messages/"+msg.ID+"/reactions", map[string]string{"emoji": "thumbs"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = bob.do(http.MethodPost, convPath+"/typing", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = bob.do(http.MethodGet, convPath+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs []*models.Message
	require.NoError(t, json.Unmarshal(body, &msgs))
	require.Len(t, msgs, 1)
	assert.ElementsMatch(t, []string{msg.SenderID, bobUser.ID}, msgs[0].ReadBy)
	assert.Equal(t, []string{bobUser.ID}, msgs[0].Reactions["👍"])

	resp, _ = bob.do(http.MethodDelete, convPath+"/messages/"+msg.ID+"/reactions", map[string]string{"emoji": "👍"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = bob.do(http.MethodGet, "/conversations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var convs []*models.Conversation
	require.NoError(t, json.Unmarshal(body, &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "hello bob", convs[0].LastMessageText)
}

func TestUpdateMe(t *testing.T) {
	ts := newTestServer(t, 100)
	alice, _, _ := signUp(t, ts.URL, "alice")

	resp, body := alice.do(http.MethodPatch, "/users/me", map[string]string{"displayName": "Alice L."})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var u models.User
	require.NoError(t, json.Unmarshal(body, &u))
	assert.Equal(t, "Alice L.", u.DisplayName)
	assert.Equal(t, "alice", u.Username)

	resp, _ = alice.do(http.MethodPatch, "/users/me", map[string]string{"username": "a"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, 100)

	for _, tc := range []struct {
		path, method string
	}{
		{"/conversations", http.MethodGet},
		{"/auth/signup", http.MethodPost},
		{"/users/me", http.MethodPatch},
		{"/conversations/c1/messages/m1/reactions", http.MethodDelete},
	} {
		t.Run(tc.path, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodOptions, ts.URL+tc.path, nil)
			require.NoError(t, err)
			req.Header.Set("Origin", "https://app.example.com")
			req.Header.Set("Access-Control-Request-Method", tc.method)
			req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Less(t, resp.StatusCode, 300)
			assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), tc.method)
		})
	}
}

func TestCORSHeadersOnAuthenticatedCall(t *testing.T) {
	ts := newTestServer(t, 100)
	alice, _, _ := signUp(t, ts.URL, "alice")

	req, err := http.NewRequest(http.MethodGet, alice.base+"/users/me", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Authorization", "Bearer "+alice.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, 1)
	c := &client{t: t, base: ts.URL}

	codes := map[int]int{}
	for i := 0; i < 5; i++ {
		resp, _ := c.do(http.MethodGet, "/health", nil)
		codes[resp.StatusCode]++
	}
	assert.Positive(t, codes[http.StatusTooManyRequests])
}

func TestSessionStreamsStore(t *testing.T) {
	ts := newTestServer(t, 100)
	alice, _, aliceToken := signUp(t, ts.URL, "alice")
	_, bobUser, _ := signUp(t, ts.URL, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=" + aliceToken
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	resp, body := alice.do(http.MethodPost, "/conversations/direct", map[string]string{"userId": bobUser.ID})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var opened struct {
		ConversationID string `json:"conversationId"`
	}
	require.NoError(t, json.Unmarshal(body, &opened))

	resp, _ = alice.do(http.MethodPost, "/conversations/"+opened.ConversationID+"/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	seen := map[store.Field]bool{}
	for !(seen[store.FieldCurrentUser] && seen[store.FieldActiveConversation] && seen[store.FieldMessages]) {
		var e struct {
			Type store.Field     `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, conn, &e))
		if e.Type == store.FieldMessages {
			var m struct {
				Messages []*models.Message `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(e.Data, &m))
			if len(m.Messages) == 0 {
				continue
			}
		}
		seen[e.Type] = true
	}

	require.NoError(t, wsjson.Write(ctx, conn, api.Command{Type: api.CommandToggleTheme}))
	for {
		var e struct {
			Type store.Field `json:"type"`
			Data any         `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, conn, &e))
		if e.Type == store.FieldTheme && e.Data == string(store.ThemeLight) {
			break
		}
	}
}

func TestSessionRejectsBadToken(t *testing.T) {
	ts := newTestServer(t, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?token=nope"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
