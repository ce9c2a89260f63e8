package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"taskwatch/internal/transport"
	"taskwatch/pkg/logx"
)

type Config struct {
	Token string

	// RatePerSec caps outbound messages per second. This is a local guard on
	// top of the dispatcher's flood control; Telegram throttles bots around
	// 30 msg/s globally.
	RatePerSec int

	// Offline skips the getMe probe on construction. Used by tests.
	Offline bool
}

// Adapter sends alert messages through the Telegram Bot API.
type Adapter struct {
	bot     *tele.Bot
	log     logx.Logger
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 20
	}
	return &Adapter{
		bot:     b,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (a *Adapter) SendText(ctx context.Context, recipient string, text string, opt transport.SendOptions) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad recipient %q: %v", transport.ErrSend, recipient, err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
	}

	start := time.Now()
	if _, err := a.bot.Send(&tele.Chat{ID: chatID}, text, sendOpt); err != nil {
		return fmt.Errorf("%w: chat %d: %v", transport.ErrSend, chatID, err)
	}
	a.log.Debug("message sent", logx.Int64("chat_id", chatID), logx.Duration("took", time.Since(start)))
	return nil
}
