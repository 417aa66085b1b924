package linebot

import (
	"context"
	"fmt"
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/go-resty/resty/v2"
)

// Messenger sends text messages to LINE users. *Client satisfies it.
type Messenger interface {
	Reply(ctx context.Context, replyToken, text string) error
	Push(ctx context.Context, to, text string) error
}

// Client calls the LINE Messaging API.
type Client struct {
	http *resty.Client
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type apiError struct {
	Message string `json:"message"`
}

// NewClient returns a Client authenticated with the channel access token.
// baseURL is normally https://api.line.me.
func NewClient(baseURL, accessToken string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	return &Client{http: http}
}

// Reply answers a webhook event. Reply tokens are single use.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   texts(text),
	})
}

// Push sends a message to a user outside of a reply.
func (c *Client) Push(ctx context.Context, to, text string) error {
	return c.post(ctx, "/v2/bot/message/push", pushRequest{
		To:       to,
		Messages: texts(text),
	})
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeLineAPI, "line request failed", err)
	}
	if resp.IsError() {
		return models.NewScrapeError(models.ErrCodeLineAPI,
			fmt.Sprintf("line %s returned %d: %s", path, resp.StatusCode(), apiErr.Message), nil)
	}
	return nil
}

func texts(text string) []textMessage {
	return []textMessage{{Type: "text", Text: Truncate(text, MaxTextLength)}}
}
