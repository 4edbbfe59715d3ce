package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"lumen-backend/internal/config"
)

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "$12.50", formatCents(int64(1250)))
	assert.Equal(t, "$0.05", formatCents(5))
	assert.Equal(t, "-$3.00", formatCents(float64(-300)))
	assert.Equal(t, "$1.99", formatCents("199"))
}

func TestRenderSessionConfirmed(t *testing.T) {
	r := NewRenderer()
	starts := time.Date(2026, 3, 8, 18, 30, 0, 0, time.UTC)
	subject, html, err := r.Render(TemplateSessionConfirmed, map[string]any{
		"recipient":   map[string]any{"name": "Ada"},
		"reader_name": "Luna",
		"session": map[string]any{
			"type":        "video",
			"starts_at":   starts,
			"price_cents": int64(4500),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your reading with Luna is confirmed", subject)
	assert.Contains(t, html, "Hi Ada,")
	assert.Contains(t, html, "Sun Mar 8, 2026 at 18:30 UTC")
	assert.Contains(t, html, "$45.00")
}

func TestRenderOrderListsTitles(t *testing.T) {
	r := NewRenderer()
	subject, html, err := r.Render(TemplateOrderCompleted, map[string]any{
		"order": map[string]any{"total_cents": 2099, "titles": []string{"Moon Guide", "Tarot 101"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Your order receipt ($20.99)", subject)
	assert.Contains(t, html, "Hi there,")
	assert.Contains(t, html, "<li>Moon Guide</li><li>Tarot 101</li>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := NewRenderer().Render("nope", nil)
	assert.Error(t, err)
}

func TestNewSenderDisabledLogs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := NewSender(context.Background(), config.MailConfig{}, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.c", Subject: "hi", Tag: TemplateTicketReplied}))
	assert.Equal(t, 1, logs.FilterMessage("email (not sent)").Len())
}
