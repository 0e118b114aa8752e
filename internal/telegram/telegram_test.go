package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/hotel-scout/internal/bot"
	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/Veraticus/hotel-scout/internal/messaging"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123:secret"

type apiCall struct {
	Body   map[string]any
	Method string
}

// fakeAPI is a scripted Bot API. respond gets the method, the decoded body, and
// how many times the method was called before; it returns a status and a JSON reply.
type fakeAPI struct {
	respond func(method string, body map[string]any, n int) (int, string)
	counts  map[string]int
	calls   []apiCall
	mu      sync.Mutex
}

func newFakeAPI(t *testing.T, respond func(method string, body map[string]any, n int) (int, string)) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{respond: respond, counts: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.TrimPrefix(r.URL.Path, "/bot"+testToken+"/")
		raw, _ := io.ReadAll(r.Body)
		body := map[string]any{}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &body)
		}

		f.mu.Lock()
		n := f.counts[method]
		f.counts[method]++
		f.calls = append(f.calls, apiCall{Method: method, Body: body})
		f.mu.Unlock()

		status, reply := f.respond(method, body, n)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method)
	}
	return out
}

func (f *fakeAPI) firstCall(method string) apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.Method == method {
			return c
		}
	}
	return apiCall{}
}

func (f *fakeAPI) lastCall(method string) apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i]
		}
	}
	return apiCall{}
}

func okMessage(id int) string {
	return `{"ok":true,"result":{"message_id":` + strconv.Itoa(id) + `,"chat":{"id":42,"type":"private"},"date":1}}`
}

func apiFailure(code int, description string) (int, string) {
	return code, `{"ok":false,"error_code":` + strconv.Itoa(code) + `,"description":"` + description + `"}`
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		Token:   testToken,
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Retry:   common.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	api, srv := newFakeAPI(t, func(_ string, _ map[string]any, n int) (int, string) {
		if n < 2 {
			return apiFailure(http.StatusBadGateway, "Bad Gateway")
		}
		return http.StatusOK, `{"ok":true,"result":{"id":7,"is_bot":true,"first_name":"Scout"}}`
	})
	c := newTestClient(t, srv)

	me, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), me.ID)
	assert.Len(t, api.methods(), 3)
}

func TestClient_PermanentErrorNotRetried(t *testing.T) {
	api, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return apiFailure(http.StatusBadRequest, "Bad Request: chat not found")
	})
	c := newTestClient(t, srv)

	_, err := c.SendMessage(context.Background(), 42, "hi", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Code)
	assert.False(t, apiErr.Retryable())
	assert.Len(t, api.methods(), 1)
	assert.NotContains(t, err.Error(), "secret")
}

func TestClient_FloodControlHint(t *testing.T) {
	_, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return http.StatusTooManyRequests,
			`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":3}}`
	})
	c := newTestClient(t, srv)

	err := c.call(context.Background(), "sendMessage", map[string]any{"chat_id": 1}, nil, time.Second)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.Retryable())
	assert.Equal(t, 3*time.Second, apiErr.RetryDelay())
}

func TestGateway_SendTextWithReplyKeyboard(t *testing.T) {
	api, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return http.StatusOK, okMessage(10)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	id, err := g.SendText(context.Background(), 42, "Results", &messaging.Markup{Reply: [][]string{{"a", "b"}}})
	require.NoError(t, err)
	assert.Equal(t, 10, id)

	body := api.lastCall("sendMessage").Body
	markup, ok := body["reply_markup"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, markup["resize_keyboard"])
	assert.Len(t, markup["keyboard"], 1)
}

func TestGateway_SendTextWithoutMarkupOmitsField(t *testing.T) {
	api, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return http.StatusOK, okMessage(11)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	_, err := g.SendText(context.Background(), 42, "hello", nil)
	require.NoError(t, err)
	assert.NotContains(t, api.lastCall("sendMessage").Body, "reply_markup")
}

func TestGateway_EditTextNotModifiedKeepsID(t *testing.T) {
	api, srv := newFakeAPI(t, func(method string, _ map[string]any, _ int) (int, string) {
		if method == "editMessageText" {
			return apiFailure(http.StatusBadRequest, "Bad Request: message is not modified")
		}
		return http.StatusOK, okMessage(99)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	markup := messaging.InlineRows([]messaging.Button{{Text: "Next", Data: "hpage|sid|1"}})
	id, err := g.EditText(context.Background(), 42, 5, "same", markup)
	require.NoError(t, err)
	assert.Equal(t, 5, id)
	assert.Equal(t, []string{"editMessageText"}, api.methods())

	buttons := api.lastCall("editMessageText").Body["reply_markup"].(map[string]any)["inline_keyboard"].([]any)
	first := buttons[0].([]any)[0].(map[string]any)
	assert.Equal(t, "hpage|sid|1", first["callback_data"])
}

func TestGateway_EditTextFallsBackToSend(t *testing.T) {
	api, srv := newFakeAPI(t, func(method string, _ map[string]any, _ int) (int, string) {
		switch method {
		case "editMessageText":
			return apiFailure(http.StatusBadRequest, "Bad Request: message to edit not found")
		case "deleteMessage":
			return http.StatusOK, `{"ok":true,"result":true}`
		}
		return http.StatusOK, okMessage(20)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	id, err := g.EditText(context.Background(), 42, 5, "new text", nil)
	require.NoError(t, err)
	assert.Equal(t, 20, id)
	assert.Equal(t, []string{"editMessageText", "sendMessage", "deleteMessage"}, api.methods())
	assert.EqualValues(t, 5, api.lastCall("deleteMessage").Body["message_id"])
}

func TestGateway_EditWithoutTargetSends(t *testing.T) {
	api, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return http.StatusOK, okMessage(30)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	id, err := g.EditText(context.Background(), 42, 0, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, 30, id)

	id, err = g.EditMedia(context.Background(), 42, 0, messaging.Media{URL: "https://img.example/1.jpg", Caption: "Hotel"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, id)
	assert.Equal(t, []string{"sendMessage", "sendPhoto"}, api.methods())
}

func TestGateway_ReplyKeyboardOnEditSendsNewMessage(t *testing.T) {
	api, srv := newFakeAPI(t, func(method string, _ map[string]any, _ int) (int, string) {
		if method == "deleteMessage" {
			return http.StatusOK, `{"ok":true,"result":true}`
		}
		return http.StatusOK, okMessage(31)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	id, err := g.EditText(context.Background(), 42, 8, "done", &messaging.Markup{RemoveReply: true})
	require.NoError(t, err)
	assert.Equal(t, 31, id)
	assert.Equal(t, []string{"sendMessage", "deleteMessage"}, api.methods())
	assert.Equal(t, map[string]any{"remove_keyboard": true}, api.lastCall("sendMessage").Body["reply_markup"])
}

func TestGateway_RejectedPhotoSendsCaption(t *testing.T) {
	api, srv := newFakeAPI(t, func(method string, _ map[string]any, _ int) (int, string) {
		if method == "sendPhoto" {
			return apiFailure(http.StatusBadRequest, "Bad Request: wrong file identifier/HTTP URL specified")
		}
		return http.StatusOK, okMessage(40)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	id, err := g.SendMedia(context.Background(), 42, messaging.Media{URL: "https://broken", Caption: "Hotel Lutetia"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 40, id)
	assert.Equal(t, "Hotel Lutetia", api.lastCall("sendMessage").Body["text"])
}

func TestGateway_EditMediaInPlace(t *testing.T) {
	api, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return http.StatusOK, okMessage(12)
	})
	g := NewGateway(newTestClient(t, srv), nil)

	id, err := g.EditMedia(context.Background(), 42, 12, messaging.Media{URL: "https://img.example/2.jpg", Caption: "Photo 2 of 3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	media := api.lastCall("editMessageMedia").Body["media"].(map[string]any)
	assert.Equal(t, "photo", media["type"])
	assert.Equal(t, "https://img.example/2.jpg", media["media"])
}

func TestGateway_RemoveControlsAndDelete(t *testing.T) {
	api, srv := newFakeAPI(t, func(method string, body map[string]any, _ int) (int, string) {
		if method == "deleteMessage" && body["message_id"] == float64(3) {
			return apiFailure(http.StatusBadRequest, "Bad Request: message to delete not found")
		}
		return http.StatusOK, `{"ok":true,"result":true}`
	})
	g := NewGateway(newTestClient(t, srv), nil)
	ctx := context.Background()

	require.NoError(t, g.RemoveControls(ctx, 42, 0))
	require.NoError(t, g.RemoveControls(ctx, 42, 2))
	markup := api.lastCall("editMessageReplyMarkup").Body["reply_markup"].(map[string]any)
	assert.Empty(t, markup["inline_keyboard"])

	err := g.DeleteMessages(ctx, 42, 0, 3, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message 3")
	assert.Equal(t, []string{"editMessageReplyMarkup", "deleteMessage", "deleteMessage"}, api.methods())
}

func TestGateway_AnswerCallback(t *testing.T) {
	api, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return http.StatusOK, `{"ok":true,"result":true}`
	})
	g := NewGateway(newTestClient(t, srv), nil)

	require.NoError(t, g.AnswerCallback(context.Background(), "cb1", "This button is no longer active.", true))
	body := api.lastCall("answerCallbackQuery").Body
	assert.Equal(t, "cb1", body["callback_query_id"])
	assert.Equal(t, true, body["show_alert"])
}

// recordingSink collects dispatched events and cancels once it has enough.
type recordingSink struct {
	cancel context.CancelFunc
	events []bot.Event
	want   int
	mu     sync.Mutex
}

func (s *recordingSink) Dispatch(_ context.Context, ev bot.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) >= s.want {
		s.cancel()
	}
	return nil
}

func TestPoller_DeliversUpdatesAfterFailure(t *testing.T) {
	updates := `{"ok":true,"result":[
		{"update_id":5,"message":{"message_id":1,"from":{"id":9,"is_bot":false,"first_name":"Ann","last_name":"Lee"},"chat":{"id":9,"type":"private"},"date":1,"text":"/lowprice"}},
		{"update_id":6,"message":{"message_id":2,"from":{"id":9,"is_bot":false,"first_name":"Ann"},"chat":{"id":9,"type":"private"},"date":1,"sticker":{}}},
		{"update_id":7,"callback_query":{"id":"q1","from":{"id":9,"is_bot":false,"first_name":"Ann"},"message":{"message_id":3,"chat":{"id":9,"type":"private"},"date":1},"data":"hpage|sid|1"}}
	]}`
	api, srv := newFakeAPI(t, func(_ string, _ map[string]any, n int) (int, string) {
		switch {
		case n == 0:
			return apiFailure(http.StatusBadGateway, "Bad Gateway")
		case n == 1:
			return http.StatusOK, updates
		default:
			return http.StatusOK, `{"ok":true,"result":[]}`
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{cancel: cancel, want: 2}
	p := NewPoller(newTestClient(t, srv), sink, time.Second, nil)
	p.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	require.NoError(t, p.Run(ctx))

	require.Len(t, sink.events, 2)
	text, ok := sink.events[0].(bot.TextEvent)
	require.True(t, ok)
	assert.Equal(t, "/lowprice", text.Text)
	assert.Equal(t, bot.Sender{Name: "Ann Lee", UserID: 9, ChatID: 9}, text.From)

	cb, ok := sink.events[1].(bot.CallbackEvent)
	require.True(t, ok)
	assert.Equal(t, "q1", cb.ID)
	assert.Equal(t, "hpage|sid|1", cb.Data)
	assert.Equal(t, 3, cb.MessageID)

	assert.GreaterOrEqual(t, len(api.methods()), 2)
	first := api.firstCall("getUpdates")
	assert.EqualValues(t, 0, first.Body["offset"])
	assert.EqualValues(t, 1, first.Body["timeout"])
}

func TestPoller_AdvancesOffset(t *testing.T) {
	api, srv := newFakeAPI(t, func(_ string, _ map[string]any, n int) (int, string) {
		if n == 0 {
			return http.StatusOK, `{"ok":true,"result":[{"update_id":41,"message":{"message_id":1,"from":{"id":3,"is_bot":false,"first_name":"Bo"},"chat":{"id":3,"type":"private"},"date":1,"text":"Paris"}}]}`
		}
		return http.StatusOK, `{"ok":true,"result":[{"update_id":42,"message":{"message_id":2,"from":{"id":3,"is_bot":false,"first_name":"Bo"},"chat":{"id":3,"type":"private"},"date":1,"text":"Rome"}}]}`
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &recordingSink{cancel: cancel, want: 2}
	p := NewPoller(newTestClient(t, srv), sink, time.Second, nil)
	require.NoError(t, p.Run(ctx))

	assert.EqualValues(t, 42, api.lastCall("getUpdates").Body["offset"])
}

func TestPoller_StopsOnInvalidToken(t *testing.T) {
	_, srv := newFakeAPI(t, func(string, map[string]any, int) (int, string) {
		return apiFailure(http.StatusUnauthorized, "Unauthorized")
	})
	p := NewPoller(newTestClient(t, srv), &recordingSink{cancel: func() {}, want: 1}, time.Second, nil)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
}

func TestEventFromUpdate_IgnoresUnsupported(t *testing.T) {
	_, ok := eventFromUpdate(Update{UpdateID: 1})
	assert.False(t, ok)

	_, ok = eventFromUpdate(Update{UpdateID: 2, Message: &Message{Text: "hi"}})
	assert.False(t, ok, "messages without a sender are ignored")

	ev, ok := eventFromUpdate(Update{UpdateID: 3, CallbackQuery: &CallbackQuery{ID: "x", From: User{ID: 5, Username: "bo"}, Data: "d"}})
	require.True(t, ok)
	assert.Equal(t, bot.Sender{Name: "bo", UserID: 5, ChatID: 5}, ev.Source())
}
