package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fire-watch/internal/domain/fire"
)

// TestNewSMTPNotifier_Validates rejects incomplete settings.
func TestNewSMTPNotifier_Validates(t *testing.T) {
	t.Parallel()

	_, err := NewSMTPNotifier(SMTPConfig{})
	require.Error(t, err)

	_, err = NewSMTPNotifier(SMTPConfig{Host: "smtp.local", From: "fire@local"})
	require.Error(t, err)

	n, err := NewSMTPNotifier(SMTPConfig{Host: "smtp.local", Port: 2525, From: "fire@local", To: []string{"ops@local"}})
	require.NoError(t, err)
	require.NotNil(t, n)
}

// TestSMTPNotifier_UnreachableServer reports the failure in the Result instead of panicking.
func TestSMTPNotifier_UnreachableServer(t *testing.T) {
	t.Parallel()

	n, err := NewSMTPNotifier(SMTPConfig{
		Host:    "127.0.0.1",
		Port:    1, // Nothing listens here.
		From:    "fire@local",
		To:      []string{"ops@local"},
		Timeout: time.Second,
	})
	require.NoError(t, err)

	result := n.Send(context.Background(), "subject", "body")
	require.False(t, result.Sent)
	require.Error(t, result.Err)
	require.NotNil(t, result.ErrorText())
}

// TestLogNotifier reports that nothing was sent.
func TestLogNotifier(t *testing.T) {
	t.Parallel()

	result := LogNotifier{}.Send(context.Background(), "s", "b")
	require.False(t, result.Sent)
	require.True(t, errors.Is(result.Err, ErrNotConfigured))
	require.Equal(t, ErrNotConfigured.Error(), *result.ErrorText())
	require.Nil(t, Result{Sent: true}.ErrorText())
}

// TestTemplates checks the subjects and bodies carry the alert details.
func TestTemplates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 7, 8, 9, 10, 11, 0, time.UTC)

	subject, body := RiskEmail(fire.SensorReading{Temperature: 60, SmokeLevel: 400}, now)
	require.Equal(t, "🔥 FIRE RISK DETECTED: 2026-07-08 09:10:11", subject)
	require.Contains(t, body, "Temperature: 60.0°C")
	require.Contains(t, body, "Smoke Level: 400.0")

	subject, body = FireConfirmedEmail("/static/results/x.jpg", 0.914, now)
	require.Equal(t, "🔥 FIRE CONFIRMED (Visual): 2026-07-08 09:10:11", subject)
	require.Contains(t, body, "Image: /static/results/x.jpg")
	require.Contains(t, body, "Confidence: 0.91")
}
