package notify

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	attempts int
	failures []error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return tgbotapi.Message{}, err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func (f *fakeSender) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func event(villageID uint, transition string) models.GameEvent {
	return models.GameEvent{
		EventID:    "8b1e6a0e-4c57-4a55-9f0e-0d7f4f6b2a01",
		VillageID:  villageID,
		EntityType: models.EntityMission,
		EntityID:   12,
		Transition: transition,
		OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func run(t *testing.T, n *TelegramNotifier) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestFormatEvent(t *testing.T) {
	got := FormatEvent(event(3, "level_up"))
	assert.Equal(t, "🗺 <b>Village 3</b>\nmission #12 level up\n<i>2025-03-01T12:00:00Z</i>", got)
}

func TestNotifier_Delivers(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, Options{ChatID: 42})
	run(t, n)

	n.Publish(context.Background(), []models.GameEvent{event(1, "started"), event(1, "completed")})

	require.Eventually(t, func() bool { return len(sender.messages()) == 2 }, time.Second, 5*time.Millisecond)
	msgs := sender.messages()
	assert.Equal(t, int64(42), msgs[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)
	assert.Contains(t, msgs[0].Text, "started")
	assert.Contains(t, msgs[1].Text, "completed")
}

func TestNotifier_SignsPayload(t *testing.T) {
	signer, err := security.NewEventSigner(strings.Repeat("k", 32), "colony", 0)
	require.NoError(t, err)
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, Options{ChatID: 1, Signer: signer})
	run(t, n)

	n.Publish(context.Background(), []models.GameEvent{event(5, "failed")})
	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, time.Second, 5*time.Millisecond)

	text := sender.messages()[0].Text
	start := strings.Index(text, "<code>")
	end := strings.Index(text, "</code>")
	require.True(t, start >= 0 && end > start)

	claims, err := signer.Verify(text[start+len("<code>") : end])
	require.NoError(t, err)
	assert.Equal(t, uint(5), claims.VillageID)
	assert.Equal(t, "failed", claims.Transition)
}

func TestNotifier_DropsWhenQueueFull(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{}, Options{QueueSize: 1})

	n.Publish(context.Background(), []models.GameEvent{event(1, "a"), event(1, "b"), event(1, "c")})
	assert.Equal(t, int64(2), n.Dropped())
}

func TestNotifier_VillageRateLimit(t *testing.T) {
	n := NewTelegramNotifier(&fakeSender{}, Options{VillagePerMinute: 1})

	n.Publish(context.Background(), []models.GameEvent{event(1, "a"), event(1, "b"), event(2, "a")})
	assert.Equal(t, int64(1), n.Dropped())
	assert.Len(t, n.queue, 2)
}

func TestNotifier_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     []error
		wantAttempts int
		wantSent     int
	}{
		{name: "Network error retried", failures: []error{stderrors.New("read: connection reset by peer")}, wantAttempts: 2, wantSent: 1},
		{name: "Other errors are final", failures: []error{stderrors.New("Bad Request: chat not found")}, wantAttempts: 1, wantSent: 0},
		{name: "Gives up after three attempts", failures: []error{
			stderrors.New("timeout"), stderrors.New("timeout"), stderrors.New("timeout"),
		}, wantAttempts: 3, wantSent: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{failures: tt.failures}
			n := NewTelegramNotifier(sender, Options{RetryDelay: time.Millisecond})

			_ = n.deliver(context.Background(), event(1, "started"))
			assert.Equal(t, tt.wantAttempts, sender.attemptCount())
			assert.Len(t, sender.messages(), tt.wantSent)
		})
	}
}
