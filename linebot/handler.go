package linebot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/13g7895123/stock.warrant/models"
	"github.com/13g7895123/stock.warrant/webhook"
	"github.com/gin-gonic/gin"
)

// HomeText is served at GET / as a liveness check.
const HomeText = "權證查詢 LINE Bot 運行中 ✓"

// SignatureHeader is the header LINE signs webhook bodies with.
const SignatureHeader = "X-Line-Signature"

// QueryRunner executes a query. *query.Service satisfies it.
type QueryRunner interface {
	Run(ctx context.Context, intent models.QueryIntent) *models.QueryResult
}

// Options tunes a Bot.
type Options struct {
	// QueryTimeout bounds one background query. Default 5m.
	QueryTimeout time.Duration
}

// Bot answers LINE webhook events.
type Bot struct {
	secret    string
	messenger Messenger
	queries   QueryRunner
	logger    *slog.Logger
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBot returns a Bot verifying bodies with channelSecret.
func NewBot(channelSecret string, m Messenger, q QueryRunner, logger *slog.Logger, opts Options) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		secret:    channelSecret,
		messenger: m,
		queries:   q,
		logger:    logger,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// webhookBody is the subset of the LINE webhook payload the bot reads.
type webhookBody struct {
	Events []event `json:"events"`
}

type event struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		Type    string `json:"type"`
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
		RoomID  string `json:"roomId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

// pushTarget is where results of a background query are sent.
func (e event) pushTarget() string {
	switch e.Source.Type {
	case "group":
		return e.Source.GroupID
	case "room":
		return e.Source.RoomID
	}
	return e.Source.UserID
}

// Home returns a handler for GET /.
func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, HomeText)
	}
}

// Callback returns a handler for POST /callback.
//
//  1. Verify X-Line-Signature against the raw body (400 on mismatch).
//  2. Decode events and handle each text message.
//  3. Answer 200 "OK" once every immediate reply is sent.
func (b *Bot) Callback() gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Signature ────────────────────────────────────────────
		body, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusBadRequest, "unreadable body")
			return
		}
		if !webhook.VerifySignature(b.secret, body, c.GetHeader(SignatureHeader)) {
			b.logger.Warn("line webhook signature rejected", "remote", c.ClientIP())
			c.JSON(http.StatusBadRequest, models.NewScrapeError(models.ErrCodeInvalidSignature,
				"invalid signature", nil).ToDetail())
			return
		}

		// ── 2. Events ───────────────────────────────────────────────
		var payload webhookBody
		if err := json.Unmarshal(body, &payload); err != nil {
			c.String(http.StatusBadRequest, "invalid payload")
			return
		}
		for _, ev := range payload.Events {
			if ev.Type != "message" || ev.Message.Type != "text" {
				continue
			}
			b.handleText(c.Request.Context(), ev)
		}

		c.String(http.StatusOK, "OK")
	}
}

func (b *Bot) handleText(ctx context.Context, ev event) {
	cmd := ParseCommand(ev.Message.Text)
	log := b.logger.With("command", cmd.Type, "source", ev.Source.Type)
	log.Info("line message received", "text", cmd.Raw)

	switch {
	case cmd.Type == CommandHelp:
		b.reply(ctx, ev.ReplyToken, HelpMessage())
	case !cmd.IsQuery():
		b.reply(ctx, ev.ReplyToken, UnknownCommandMessage())
	case !ValidateStockCode(cmd.StockCode):
		b.reply(ctx, ev.ReplyToken, InvalidStockCodeMessage)
	default:
		b.reply(ctx, ev.ReplyToken, ProcessingMessage(cmd.StockCode))
		b.wg.Add(1)
		go b.runAndPush(cmd, ev.pushTarget())
	}
}

// runAndPush runs the query outside the webhook request and pushes the
// formatted result to the chat it came from.
func (b *Bot) runAndPush(cmd Command, to string) {
	defer b.wg.Done()
	log := b.logger.With("command", cmd.Type, "stock", cmd.StockCode)

	ctx, cancel := context.WithTimeout(b.ctx, b.opts.QueryTimeout)
	defer cancel()

	var text string
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("query panicked", "panic", r)
				text = "❌ 查詢失敗\n內部錯誤"
			}
		}()
		text = FormatResult(b.queries.Run(ctx, cmd.Intent()))
	}()

	if to == "" {
		log.Warn("no push target, dropping result")
		return
	}
	pushCtx, pushCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer pushCancel()
	if err := b.messenger.Push(pushCtx, to, text); err != nil {
		log.Error("push failed", "error", err)
		return
	}
	log.Info("result pushed", "chars", len([]rune(text)))
}

func (b *Bot) reply(ctx context.Context, token, text string) {
	if err := b.messenger.Reply(ctx, token, text); err != nil {
		b.logger.Error("reply failed", "error", err)
	}
}

// Close cancels running queries and waits for their pushes to finish or
// ctx to end.
func (b *Bot) Close(ctx context.Context) error {
	b.cancel()
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
