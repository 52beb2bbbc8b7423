package notify

import (
	"context"
	"math"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/pasiyamd/forexbot/internal/observ"
)

const (
	queueCapacity = 256
	maxAttempts   = 3
)

// sender abstracts the Telegram API call so the queue can be tested
// without the network.
type sender interface {
	send(chatID int64, text string) error
}

type botSender struct {
	bot *tgbotapi.BotAPI
}

func (b botSender) send(chatID int64, text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

type queuedMessage struct {
	text     string
	attempts int
}

// TelegramSink delivers notifications to one operator chat through a
// bounded queue. Telegram caps bots around 30 msg/s overall and 1
// msg/s per chat, so sends are paced; failures retry with exponential
// backoff and overflow is dropped, never blocking the caller.
type TelegramSink struct {
	sender  sender
	chatID  int64
	queue   chan queuedMessage
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTelegramSink starts the delivery worker for chatID.
func NewTelegramSink(bot *tgbotapi.BotAPI, chatID int64) *TelegramSink {
	return newTelegramSink(botSender{bot: bot}, chatID)
}

func newTelegramSink(s sender, chatID int64) *TelegramSink {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &TelegramSink{
		sender:  s,
		chatID:  chatID,
		queue:   make(chan queuedMessage, queueCapacity),
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go sink.worker()
	return sink
}

// Send enqueues text for delivery. It never blocks: when the queue is
// full the message is dropped and counted.
func (t *TelegramSink) Send(text string) {
	select {
	case t.queue <- queuedMessage{text: text}:
	default:
		observ.IncCounter("notify_dropped_total", map[string]string{"reason": "queue_full"})
	}
}

// Close stops the worker. Queued messages that have not been sent yet
// are discarded.
func (t *TelegramSink) Close() {
	t.cancel()
	<-t.done
}

func (t *TelegramSink) worker() {
	defer close(t.done)
	for {
		select {
		case <-t.ctx.Done():
			return
		case msg := <-t.queue:
			if err := t.limiter.Wait(t.ctx); err != nil {
				return
			}
			err := t.sender.send(t.chatID, msg.text)
			if err == nil {
				observ.IncCounter("notify_sent_total", nil)
				continue
			}

			msg.attempts++
			if msg.attempts >= maxAttempts {
				observ.Error("notify_send_failed", err, map[string]any{"attempts": msg.attempts})
				observ.IncCounter("notify_dropped_total", map[string]string{"reason": "max_retries"})
				continue
			}

			backoff := time.Duration(math.Pow(2, float64(msg.attempts))) * time.Second
			observ.Warn("notify_send_retry", map[string]any{"attempt": msg.attempts, "backoff": backoff.String()})
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(backoff):
			}
			select {
			case t.queue <- msg:
			default:
				observ.IncCounter("notify_dropped_total", map[string]string{"reason": "queue_full"})
			}
		}
	}
}
