// Package telegram connects the conversation to the Telegram Bot API: a resty
// client for the methods the bot uses, a Gateway implementing the messaging
// contract, and a long-polling Poller that feeds updates to a dispatcher.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/common"
	"github.com/Veraticus/hotel-scout/internal/metrics"
	"github.com/go-resty/resty/v2"
)

// Client defaults.
const (
	DefaultBaseURL     = "https://api.telegram.org"
	DefaultTimeout     = 10 * time.Second
	DefaultPollTimeout = 30 * time.Second
)

// ClientConfig holds the Bot API client configuration.
type ClientConfig struct {
	Logger  *slog.Logger
	Token   string
	BaseURL string
	Retry   common.RetryPolicy
	Timeout time.Duration
}

// Client calls Bot API methods. Requests other than getUpdates are retried
// when Telegram reports flood control or a server error.
type Client struct {
	http    *resty.Client
	logger  *slog.Logger
	token   string
	retry   common.RetryPolicy
	timeout time.Duration
}

// NewClient creates a Bot API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token: %w", common.ErrMissingConfig)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telegram")

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = common.DefaultRetryPolicy("telegram")
	}
	if retry.Logger == nil {
		retry.Logger = logger
	}

	// Request deadlines come from contexts so getUpdates can outlive the default timeout.
	httpClient := resty.New().
		SetBaseURL(baseURL+"/bot"+cfg.Token).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    httpClient,
		logger:  logger,
		token:   cfg.Token,
		retry:   retry,
		timeout: timeout,
	}, nil
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	Result      json.RawMessage     `json:"result"`
	Parameters  *responseParameters `json:"parameters"`
	Description string              `json:"description"`
	ErrorCode   int                 `json:"error_code"`
	OK          bool                `json:"ok"`
}

type responseParameters struct {
	RetryAfter      int   `json:"retry_after"`
	MigrateToChatID int64 `json:"migrate_to_chat_id"`
}

// APIError is a failed Bot API call.
type APIError struct {
	Err         error
	Method      string
	Description string
	Code        int
	RetryAfter  time.Duration
	Transient   bool
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the retry policy may repeat the call.
func (e *APIError) Retryable() bool {
	return e.Transient
}

// RetryDelay returns Telegram's retry_after hint.
func (e *APIError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// NotModified reports an edit that would not change the message.
func (e *APIError) NotModified() bool {
	return strings.Contains(e.Description, "message is not modified")
}

// IsNotModified reports whether err is a "message is not modified" rejection.
func IsNotModified(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotModified()
}

// call performs one POST without retries. timeout bounds the whole request.
func (c *Client) call(ctx context.Context, method string, body any, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var env apiResponse
	req := c.http.R().
		SetContext(ctx).
		SetResult(&env).
		SetError(&env)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Post("/" + method)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues(method, "network_error").Inc()
		if errors.Is(err, context.Canceled) {
			return &APIError{Method: method, Err: context.Canceled}
		}
		return &APIError{Method: method, Err: errors.New(c.redact(err.Error())), Transient: true}
	}
	if resp.IsError() || !env.OK {
		metrics.GatewayRequests.WithLabelValues(method, "api_error").Inc()
		apiErr := &APIError{
			Method:      method,
			Code:        env.ErrorCode,
			Description: env.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		apiErr.Transient = apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(env.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	metrics.GatewayRequests.WithLabelValues(method, "ok").Inc()

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &APIError{Method: method, Err: fmt.Errorf("failed to decode result: %w", err)}
		}
	}
	return nil
}

// do is call with the retry policy applied.
func (c *Client) do(ctx context.Context, method string, body any, out any) error {
	return c.retry.Named(method).Do(ctx, func(ctx context.Context) error {
		return c.call(ctx, method, body, out, c.timeout)
	})
}

// redact keeps the bot token out of transport error messages.
func (c *Client) redact(s string) string {
	return strings.ReplaceAll(s, c.token, "<token>")
}

// GetMe returns the bot's own user.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.do(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for updates after offset. It is not retried; the poller backs off.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]Update, error) {
	body := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", body, &updates, timeout+c.timeout); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage sends a text message. markup may be any reply markup type or nil.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup any) (*Message, error) {
	body := map[string]any{"chat_id": chatID, "text": text}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.do(ctx, "sendMessage", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces a message's text and inline keyboard.
func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *InlineKeyboardMarkup) (*Message, error) {
	body := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.do(ctx, "editMessageText", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto sends a photo by URL.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, markup any) (*Message, error) {
	body := map[string]any{"chat_id": chatID, "photo": photoURL}
	if caption != "" {
		body["caption"] = caption
	}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.do(ctx, "sendPhoto", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageMedia replaces a media message's photo, caption, and inline keyboard.
func (c *Client) EditMessageMedia(ctx context.Context, chatID int64, messageID int, media InputMediaPhoto, markup *InlineKeyboardMarkup) (*Message, error) {
	media.Type = "photo"
	body := map[string]any{"chat_id": chatID, "message_id": messageID, "media": media}
	if markup != nil {
		body["reply_markup"] = markup
	}
	var msg Message
	if err := c.do(ctx, "editMessageMedia", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageReplyMarkup replaces a message's inline keyboard. A nil markup removes it.
func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID int64, messageID int, markup *InlineKeyboardMarkup) error {
	if markup == nil {
		markup = &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	}
	body := map[string]any{"chat_id": chatID, "message_id": messageID, "reply_markup": markup}
	return c.do(ctx, "editMessageReplyMarkup", body, nil)
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.do(ctx, "deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID}, nil)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a notice or alert.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string, alert bool) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
		body["show_alert"] = alert
	}
	return c.do(ctx, "answerCallbackQuery", body, nil)
}

// SetMyCommands publishes the command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.do(ctx, "setMyCommands", map[string]any{"commands": commands}, nil)
}
