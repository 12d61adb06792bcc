package notify

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/colony_engine/internal/middleware"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/security"
	"github.com/mroshb/colony_engine/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultQueueSize        = 256
	defaultVillagePerMinute = 30
	maxSendAttempts         = 3
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Options struct {
	ChatID           int64
	RatePerSecond    float64
	VillagePerMinute int
	QueueSize        int
	RetryDelay       time.Duration
	Signer           *security.EventSigner
}

// TelegramNotifier posts committed game events to one Telegram chat. Publish
// only enqueues; Run does the sending.
type TelegramNotifier struct {
	sender     Sender
	chatID     int64
	global     *rate.Limiter
	villages   *middleware.RateLimiter
	signer     *security.EventSigner
	retryDelay time.Duration
	queue      chan models.GameEvent
	dropped    atomic.Int64
	log        *zap.SugaredLogger
}

// NewBotSender authorizes a bot token against the Telegram API.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug
	logger.Info("Authorized on account", "username", api.Self.UserName)
	return api, nil
}

func NewTelegramNotifier(sender Sender, opts Options) *TelegramNotifier {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.VillagePerMinute <= 0 {
		opts.VillagePerMinute = defaultVillagePerMinute
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &TelegramNotifier{
		sender:     sender,
		chatID:     opts.ChatID,
		global:     rate.NewLimiter(limit, 1),
		villages:   middleware.NewRateLimiter(opts.VillagePerMinute, opts.VillagePerMinute, 10*time.Minute),
		signer:     opts.Signer,
		retryDelay: opts.RetryDelay,
		queue:      make(chan models.GameEvent, opts.QueueSize),
		log:        logger.Named("notifier"),
	}
}

// Publish never blocks. Events over a village's budget or a full queue are dropped.
func (n *TelegramNotifier) Publish(_ context.Context, events []models.GameEvent) {
	for _, e := range events {
		if !n.villages.Allow(e.VillageID) {
			n.drop(e, "village rate limit")
			continue
		}
		select {
		case n.queue <- e:
		default:
			n.drop(e, "queue full")
		}
	}
}

func (n *TelegramNotifier) drop(e models.GameEvent, reason string) {
	n.dropped.Add(1)
	n.log.Debugw("Event notification dropped", "event_id", e.EventID, "village_id", e.VillageID, "reason", reason)
}

// Dropped returns how many events were never queued.
func (n *TelegramNotifier) Dropped() int64 {
	return n.dropped.Load()
}

// Run delivers queued events until ctx is cancelled.
func (n *TelegramNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-n.queue:
			if err := n.deliver(ctx, e); err != nil && ctx.Err() == nil {
				n.log.Errorw("Failed to deliver event", "event_id", e.EventID, "error", err)
			}
		}
	}
}

func (n *TelegramNotifier) deliver(ctx context.Context, e models.GameEvent) error {
	if err := n.global.Wait(ctx); err != nil {
		return err
	}

	text := FormatEvent(e)
	if n.signer != nil {
		token, err := n.signer.Sign(e)
		if err != nil {
			return fmt.Errorf("sign event: %w", err)
		}
		text += "\n<code>" + token + "</code>"
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	var lastErr error
	for i := 0; i < maxSendAttempts; i++ {
		if _, err := n.sender.Send(msg); err != nil {
			lastErr = err
			n.log.Warnw("Failed to send message", "error", err, "chat_id", n.chatID, "attempt", i+1)
			if !isNetworkError(err) || i == maxSendAttempts-1 {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * n.retryDelay):
			}
			continue
		}
		return nil
	}
	return lastErr
}

func isNetworkError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "network is unreachable")
}

var entityIcons = map[string]string{
	models.EntityVillage:   "🏘",
	models.EntityLedger:    "📦",
	models.EntityBuilding:  "🏗",
	models.EntityResearch:  "🔬",
	models.EntityMission:   "🗺",
	models.EntityCharacter: "🧑",
	models.EntityEquipment: "🛡",
}

// FormatEvent renders an event as a Telegram HTML message.
func FormatEvent(e models.GameEvent) string {
	icon, ok := entityIcons[e.EntityType]
	if !ok {
		icon = "•"
	}
	return fmt.Sprintf("%s <b>Village %d</b>\n%s #%d %s\n<i>%s</i>",
		icon,
		e.VillageID,
		e.EntityType,
		e.EntityID,
		strings.ReplaceAll(e.Transition, "_", " "),
		e.OccurredAt.UTC().Format(time.RFC3339),
	)
}
